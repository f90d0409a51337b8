package session

import (
	"context"
	"sync"
	"time"

	"github.com/claude/fitfam/internal/models"
)

// Record is the persisted form of an authenticated session.
type Record struct {
	ID           string
	User         *models.User
	AccessToken  string
	RefreshToken string
	TokenType    string
	TokenExpiry  time.Time
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Repo persists session records so signed-in browsers survive a restart.
type Repo interface {
	Upsert(ctx context.Context, rec Record) error
	// Get returns ErrSessionNotFound when no record has id.
	Get(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
	// DeleteExpired removes records whose ExpiresAt is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// MemoryRepo keeps records in process memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[string]Record)}
}

func (r *MemoryRepo) Upsert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.User = copyUser(rec.User)
	r.records[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, ErrSessionNotFound
	}
	rec.User = copyUser(rec.User)
	return rec, nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

func (r *MemoryRepo) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.ExpiresAt.Before(cutoff) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) Close() error { return nil }
