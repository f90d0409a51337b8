package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/fitfam/internal/models"
	"golang.org/x/oauth2"
)

// Status is the authentication lifecycle of a Store.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitializing
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitializing:
		return "initializing"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Settled reports whether the status is final until the next Init/Login/Logout.
func (s Status) Settled() bool {
	return s == StatusAuthenticated || s == StatusUnauthenticated
}

// Authenticator is the remote auth collaborator a Store validates against.
type Authenticator interface {
	GetSession(ctx context.Context, tok *oauth2.Token) (*oauth2.Token, error)
	GetCurrentUser(ctx context.Context, tok *oauth2.Token) (*models.User, error)
	SignOut(ctx context.Context, tok *oauth2.Token) error
}

// State is a point-in-time copy of a Store.
type State struct {
	Status        Status
	User          *models.User
	Authenticated bool
}

// Store holds the authentication state of one browser session.
//
// Authenticated is true iff a non-nil user is held. Init and Logout never
// return errors; their Result says what happened remotely.
type Store struct {
	auth Authenticator
	log  *slog.Logger

	mu       sync.Mutex
	status   Status
	user     *models.User
	token    *oauth2.Token
	gen      uint64
	initDone chan struct{}
	lastInit Result

	claims map[string]struct{}
}

// NewStore returns an uninitialized store.
func NewStore(auth Authenticator, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{auth: auth, log: log}
}

// Snapshot copies the observable state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Status:        s.status,
		User:          copyUser(s.user),
		Authenticated: s.status == StatusAuthenticated,
	}
}

func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) IsAuthenticated() bool {
	return s.Status() == StatusAuthenticated
}

// User returns a copy of the held user, nil when signed out.
func (s *Store) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.user)
}

// Token returns the remote session token, nil when there is none.
func (s *Store) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil
	}
	t := *s.token
	return &t
}

// LastInit returns the result of the most recent completed Init.
func (s *Store) LastInit() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInit
}

// Retryable reports whether the store is signed out only because the
// backend could not be reached, so a later Init may still succeed.
func (s *Store) Retryable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusUnauthenticated || s.token == nil {
		return false
	}
	return s.lastInit.Kind == KindUnavailable || s.lastInit.Kind == KindCanceled
}

// Init asks the collaborator whether the held token is still a live session
// and, if so, loads the current user. Any failure leaves the store
// unauthenticated. Concurrent calls share one in-flight check.
func (s *Store) Init(ctx context.Context) Result {
	s.mu.Lock()
	if s.status == StatusInitializing {
		done := s.initDone
		s.mu.Unlock()
		select {
		case <-done:
			return s.LastInit()
		case <-ctx.Done():
			return Result{Kind: KindCanceled, Err: ctx.Err()}
		}
	}
	s.status = StatusInitializing
	done := make(chan struct{})
	s.initDone = done
	gen := s.gen
	tok := s.token
	s.mu.Unlock()

	user, fresh, res := s.check(ctx, tok)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer close(done)

	if s.gen != gen {
		// Login or Logout ran meanwhile; their state wins.
		s.lastInit = res
		return res
	}
	s.lastInit = res
	switch res.Kind {
	case KindOK:
		s.status = StatusAuthenticated
		s.user = user
		s.token = fresh
	case KindUnavailable, KindCanceled:
		// Keep the token so a later Init can retry.
		s.status = StatusUnauthenticated
		s.user = nil
	default:
		s.status = StatusUnauthenticated
		s.user = nil
		s.token = nil
	}

	if res.Err != nil {
		s.log.Warn("session init failed", "kind", res.Kind.String(), "error", res.Err)
	}
	return res
}

func (s *Store) check(ctx context.Context, tok *oauth2.Token) (user *models.User, fresh *oauth2.Token, res Result) {
	defer func() {
		if r := recover(); r != nil {
			user, fresh = nil, nil
			res = Result{Kind: KindUnknown, Err: fmt.Errorf("session check panicked: %v", r)}
		}
	}()

	if tok == nil {
		return nil, nil, Result{Kind: KindNoSession}
	}

	fresh, err := s.auth.GetSession(ctx, tok)
	if err != nil {
		return nil, nil, failed("get session", err)
	}
	if fresh == nil {
		return nil, nil, Result{Kind: KindNoSession}
	}

	user, err = s.auth.GetCurrentUser(ctx, fresh)
	if err != nil {
		return nil, nil, failed("get current user", err)
	}
	if user == nil {
		return nil, nil, Result{Kind: KindNoSession}
	}
	return user, fresh, Result{Kind: KindOK}
}

// Login marks the store authenticated as user. The caller has already
// completed the remote sign-in and passes the resulting token. A nil user
// signs the store out, since authentication requires a user.
func (s *Store) Login(user *models.User, tok *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if user == nil {
		s.clearLocked()
		return
	}
	s.status = StatusAuthenticated
	s.user = copyUser(user)
	s.token = tok
}

// UpdateUser replaces the held user without touching the authentication
// flag. It is ignored unless the store is authenticated and user is non-nil.
func (s *Store) UpdateUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAuthenticated || user == nil {
		return
	}
	s.user = copyUser(user)
}

// Logout signs out remotely and then clears local state no matter what the
// remote call returned.
func (s *Store) Logout(ctx context.Context) Result {
	tok := s.Token()

	res := Result{Kind: KindOK}
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = Result{Kind: KindUnknown, Err: fmt.Errorf("sign out panicked: %v", r)}
			}
		}()
		if err := s.auth.SignOut(ctx, tok); err != nil {
			res = failed("sign out", err)
		}
	}()

	s.mu.Lock()
	s.gen++
	s.clearLocked()
	s.mu.Unlock()

	if res.Err != nil {
		s.log.Warn("remote sign out failed, local session cleared anyway", "kind", res.Kind.String(), "error", res.Err)
	}
	return res
}

// Expire is called when the backend rejected the held token on a data call.
// An authenticated store drops its user and goes back to uninitialized,
// keeping the token so the next Init can refresh it or sign the store out.
// It reports whether the store was authenticated.
func (s *Store) Expire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAuthenticated {
		return false
	}
	s.gen++
	s.status = StatusUninitialized
	s.user = nil
	s.log.Info("session token rejected, revalidating")
	return true
}

// Claim marks action as in flight for this session. It returns false while
// an earlier claim on the same action has not been released.
func (s *Store) Claim(action string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.claims[action]; busy {
		return nil, false
	}
	if s.claims == nil {
		s.claims = make(map[string]struct{})
	}
	s.claims[action] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.claims, action)
			s.mu.Unlock()
		})
	}, true
}

// Wait blocks until an in-flight Init finishes or ctx ends.
func (s *Store) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusInitializing {
		s.mu.Unlock()
		return nil
	}
	done := s.initDone
	s.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) clearLocked() {
	s.status = StatusUnauthenticated
	s.user = nil
	s.token = nil
}

// record converts the store into its persisted form.
func (s *Store) record(id string, created, expires time.Time) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := Record{
		ID:        id,
		User:      copyUser(s.user),
		CreatedAt: created,
		ExpiresAt: expires,
	}
	if s.token != nil {
		rec.AccessToken = s.token.AccessToken
		rec.RefreshToken = s.token.RefreshToken
		rec.TokenType = s.token.TokenType
		rec.TokenExpiry = s.token.Expiry
	}
	return rec
}

// restore rebuilds an uninitialized store from a persisted record so the next
// Init revalidates its token against the collaborator.
func restore(auth Authenticator, log *slog.Logger, rec Record) *Store {
	st := NewStore(auth, log)
	if rec.AccessToken != "" {
		st.token = &oauth2.Token{
			AccessToken:  rec.AccessToken,
			RefreshToken: rec.RefreshToken,
			TokenType:    rec.TokenType,
			Expiry:       rec.TokenExpiry,
		}
	}
	return st
}

func copyUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
