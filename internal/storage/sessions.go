package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/session"
	"github.com/jackc/pgx/v5"
)

var _ session.Repo = (*DB)(nil)

// Upsert inserts or replaces a session record.
func (db *DB) Upsert(ctx context.Context, rec session.Record) error {
	user, err := marshalUser(rec.User)
	if err != nil {
		return err
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO web_sessions (id, user_json, access_token, refresh_token, token_type, token_expiry, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			user_json = EXCLUDED.user_json,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			token_expiry = EXCLUDED.token_expiry,
			expires_at = EXCLUDED.expires_at
	`, rec.ID, user, rec.AccessToken, rec.RefreshToken, rec.TokenType, nullTime(rec.TokenExpiry), rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

// Get loads a session record by id.
func (db *DB) Get(ctx context.Context, id string) (session.Record, error) {
	var (
		rec    session.Record
		user   []byte
		expiry *time.Time
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id::text, user_json, access_token, refresh_token, token_type, token_expiry, created_at, expires_at
		FROM web_sessions WHERE id = $1
	`, id).Scan(&rec.ID, &user, &rec.AccessToken, &rec.RefreshToken, &rec.TokenType, &expiry, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Record{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("loading session: %w", err)
	}
	if expiry != nil {
		rec.TokenExpiry = *expiry
	}
	if rec.User, err = unmarshalUser(user); err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

// Delete removes a session record. Deleting a missing record is not an error.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM web_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteExpired removes records that expired before cutoff.
func (db *DB) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func marshalUser(u *models.User) ([]byte, error) {
	if u == nil {
		return nil, nil
	}
	b, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encoding session user: %w", err)
	}
	return b, nil
}

func unmarshalUser(b []byte) (*models.User, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var u models.User
	if err := json.Unmarshal(b, &u); err != nil {
		return nil, fmt.Errorf("decoding session user: %w", err)
	}
	return &u, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
