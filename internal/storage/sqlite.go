package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/fitfam/internal/session"
	_ "modernc.org/sqlite"
)

// SQLiteSessions stores web sessions in a single-file SQLite database, for
// deployments that run without Postgres.
type SQLiteSessions struct {
	db *sql.DB
}

var _ session.Repo = (*SQLiteSessions)(nil)

// OpenSQLite opens (or creates) the session database at path.
func OpenSQLite(path string) (*SQLiteSessions, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS web_sessions (
		id            TEXT PRIMARY KEY,
		user_json     TEXT,
		access_token  TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		token_type    TEXT NOT NULL DEFAULT '',
		token_expiry  INTEGER,
		created_at    INTEGER NOT NULL,
		expires_at    INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session table: %w", err)
	}

	return &SQLiteSessions{db: db}, nil
}

func (s *SQLiteSessions) Upsert(ctx context.Context, rec session.Record) error {
	user, err := marshalUser(rec.User)
	if err != nil {
		return err
	}
	var expiry sql.NullInt64
	if !rec.TokenExpiry.IsZero() {
		expiry = sql.NullInt64{Int64: rec.TokenExpiry.Unix(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO web_sessions
			(id, user_json, access_token, refresh_token, token_type, token_expiry, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, nullString(user), rec.AccessToken, rec.RefreshToken, rec.TokenType, expiry,
		rec.CreatedAt.Unix(), rec.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

func (s *SQLiteSessions) Get(ctx context.Context, id string) (session.Record, error) {
	var (
		rec              session.Record
		user             sql.NullString
		expiry           sql.NullInt64
		created, expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_json, access_token, refresh_token, token_type, token_expiry, created_at, expires_at
		 FROM web_sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &user, &rec.AccessToken, &rec.RefreshToken, &rec.TokenType, &expiry, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("loading session: %w", err)
	}

	rec.CreatedAt = time.Unix(created, 0)
	rec.ExpiresAt = time.Unix(expires, 0)
	if expiry.Valid {
		rec.TokenExpiry = time.Unix(expiry.Int64, 0)
	}
	if rec.User, err = unmarshalUser([]byte(user.String)); err != nil {
		return session.Record{}, err
	}
	return rec, nil
}

func (s *SQLiteSessions) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *SQLiteSessions) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM web_sessions WHERE expires_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the session database.
func (s *SQLiteSessions) Close() error {
	return s.db.Close()
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
