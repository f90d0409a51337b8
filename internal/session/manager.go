package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	store   *Store
	created time.Time
	seen    time.Time
}

// Manager maps browser session IDs to Stores. Live stores are cached in
// memory; authenticated ones are also written to a Repo.
type Manager struct {
	repo   Repo
	auth   Authenticator
	log    *slog.Logger
	maxAge time.Duration
	now    func() time.Time

	mu   sync.Mutex
	live map[string]*entry
}

// NewManager creates a manager. maxAge bounds both the cookie lifetime and
// how long an idle store stays cached.
func NewManager(repo Repo, auth Authenticator, maxAge time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		repo:   repo,
		auth:   auth,
		log:    log,
		maxAge: maxAge,
		now:    time.Now,
		live:   make(map[string]*entry),
	}
}

// MaxAge is the session lifetime.
func (m *Manager) MaxAge() time.Duration { return m.maxAge }

// Resolve returns the store for id, loading it from the repo if it is not
// cached. An empty, malformed, unknown or expired id yields a fresh store
// under a new id; the returned id is the one the cookie must carry.
func (m *Manager) Resolve(ctx context.Context, id string) (*Store, string) {
	now := m.now()

	if _, err := uuid.Parse(id); err != nil {
		return m.fresh(now)
	}

	m.mu.Lock()
	if e, ok := m.live[id]; ok {
		if now.Sub(e.created) < m.maxAge {
			e.seen = now
			m.mu.Unlock()
			return e.store, id
		}
		delete(m.live, id)
	}
	m.mu.Unlock()

	rec, err := m.repo.Get(ctx, id)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return m.fresh(now)
	case err != nil:
		m.log.Warn("loading session", "error", err)
		return m.fresh(now)
	case !rec.ExpiresAt.After(now):
		if err := m.repo.Delete(ctx, id); err != nil {
			m.log.Warn("deleting expired session", "error", err)
		}
		return m.fresh(now)
	}

	st := restore(m.auth, m.log, rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	// Another request may have restored it first.
	if e, ok := m.live[id]; ok {
		e.seen = now
		return e.store, id
	}
	m.live[id] = &entry{store: st, created: rec.CreatedAt, seen: now}
	return st, id
}

func (m *Manager) fresh(now time.Time) (*Store, string) {
	id := uuid.NewString()
	st := NewStore(m.auth, m.log)
	m.mu.Lock()
	m.live[id] = &entry{store: st, created: now, seen: now}
	m.mu.Unlock()
	return st, id
}

// Save persists st under id when it is authenticated and forgets any
// persisted record otherwise.
func (m *Manager) Save(ctx context.Context, id string, st *Store) error {
	m.mu.Lock()
	created := m.now()
	if e, ok := m.live[id]; ok && e.store == st {
		created = e.created
	}
	m.mu.Unlock()

	if !st.IsAuthenticated() {
		if err := m.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return err
		}
		return nil
	}
	return m.repo.Upsert(ctx, st.record(id, created, created.Add(m.maxAge)))
}

// Rotate moves st to a new id, typically right after sign-in, and forgets
// the old one. It returns the new id.
func (m *Manager) Rotate(ctx context.Context, oldID string, st *Store) (string, error) {
	now := m.now()
	id := uuid.NewString()
	m.mu.Lock()
	delete(m.live, oldID)
	m.live[id] = &entry{store: st, created: now, seen: now}
	m.mu.Unlock()

	if err := m.repo.Delete(ctx, oldID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return id, err
	}
	return id, m.Save(ctx, id, st)
}

// Drop forgets id both in memory and in the repo.
func (m *Manager) Drop(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.live, id)
	m.mu.Unlock()
	if err := m.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// Sweep evicts cached stores idle for longer than maxAge and deletes
// expired records. It returns how many records were deleted.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	now := m.now()
	m.mu.Lock()
	for id, e := range m.live {
		if now.Sub(e.seen) > m.maxAge || now.Sub(e.created) > m.maxAge {
			delete(m.live, id)
		}
	}
	m.mu.Unlock()
	return m.repo.DeleteExpired(ctx, now)
}

// Len returns the number of cached stores.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.Sweep(ctx)
			if err != nil {
				m.log.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				m.log.Info("expired sessions removed", "count", n)
			}
		}
	}
}

type ctxKey struct{}

type ctxValue struct {
	id    string
	store *Store
}

// NewContext attaches the request's session to ctx.
func NewContext(ctx context.Context, id string, st *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, ctxValue{id: id, store: st})
}

// FromContext returns the session attached by NewContext.
func FromContext(ctx context.Context) (string, *Store, bool) {
	v, ok := ctx.Value(ctxKey{}).(ctxValue)
	if !ok {
		return "", nil, false
	}
	return v.id, v.store, true
}
