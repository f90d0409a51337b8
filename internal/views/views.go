// Package views holds the per-page view state controllers. Each view fetches
// its data on Mount under a context that Unmount cancels; results that land
// after Unmount are dropped.
package views

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/session"
	"golang.org/x/oauth2"
)

// Backend is the remote API the views drive.
type Backend interface {
	SignIn(ctx context.Context, email, password string) (*oauth2.Token, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*oauth2.Token, error)
	GetCurrentUser(ctx context.Context, tok *oauth2.Token) (*models.User, error)

	GetCurrentWeekWorkouts(ctx context.Context, tok *oauth2.Token) ([]models.Workout, error)
	GetWorkout(ctx context.Context, tok *oauth2.Token, id string) (*models.Workout, error)
	DeleteWorkout(ctx context.Context, tok *oauth2.Token, id string) error
	ToggleFavorite(ctx context.Context, tok *oauth2.Token, id string, favorite bool) error
	GenerateWorkout(ctx context.Context, tok *oauth2.Token, req models.GenerateRequest) (*models.Workout, error)
	SetExerciseSetCompleted(ctx context.Context, tok *oauth2.Token, workoutID, setID string, completed bool) error

	ListPartners(ctx context.Context, tok *oauth2.Token) ([]models.Partner, error)
	ComparePartner(ctx context.Context, tok *oauth2.Token, partnerID string) (*models.Comparison, error)
	UpdateProfile(ctx context.Context, tok *oauth2.Token, upd models.ProfileUpdate) (*models.User, error)
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(msg string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(msg string)

func (f AlertFunc) Alert(msg string) { f(msg) }

// Alerts collects alert messages so they can be rendered after a redirect.
type Alerts struct {
	mu   sync.Mutex
	msgs []string
}

func (a *Alerts) Alert(msg string) {
	a.mu.Lock()
	a.msgs = append(a.msgs, msg)
	a.mu.Unlock()
}

// Messages returns the collected alerts in order.
func (a *Alerts) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(msg string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(msg string) bool

func (f ConfirmFunc) Confirm(msg string) bool { return f(msg) }

// Deps are the collaborators shared by every view of one session.
type Deps struct {
	Backend Backend
	Session *session.Store
	Alert   Alerter
	Confirm Confirmer
	Log     *slog.Logger
}

func (d Deps) token() *oauth2.Token {
	if d.Session == nil {
		return nil
	}
	return d.Session.Token()
}

func (d Deps) logger() *slog.Logger {
	if d.Log == nil {
		return slog.Default()
	}
	return d.Log
}

func (d Deps) alert(msg string) {
	if d.Alert != nil {
		d.Alert.Alert(msg)
	}
}

// rejected expires the session when the backend refused its token, so the
// next guarded request revalidates it.
func (d Deps) rejected(err error) {
	if d.Session != nil && backend.KindOf(err) == backend.KindUnauthorized {
		d.Session.Expire()
	}
}

// claim holds action for the whole session while it runs, so a second
// request for the same action is dropped.
func (d Deps) claim(action string) (release func(), ok bool) {
	if d.Session == nil {
		return func() {}, true
	}
	return d.Session.Claim(action)
}

func (d Deps) confirm(msg string) bool {
	if d.Confirm == nil {
		return false
	}
	return d.Confirm.Confirm(msg)
}

// lifetime scopes a view's remote calls to the time it is mounted.
type lifetime struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// begin starts a new mount, cancelling any previous one.
func (l *lifetime) begin(parent context.Context) context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.ctx, l.cancel = context.WithCancel(parent)
	return l.ctx
}

// Unmount cancels in-flight calls; their results are discarded.
func (l *lifetime) Unmount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// commit runs fn only while ctx is still the live mount.
func (l *lifetime) commit(ctx context.Context, fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx != l.ctx || ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

// ErrInvalidInput is matched by every form validation error.
var ErrInvalidInput = errors.New("invalid input")

// inputError is a validation failure whose text is shown to the user as is.
type inputError string

func (e inputError) Error() string        { return string(e) }
func (e inputError) Is(target error) bool { return target == ErrInvalidInput }

// Messages for backend failures that are not specific to one view.
const (
	UnreachableMessage = "The server is unreachable. Please try again later."
	ExpiredMessage     = "Your session has expired. Please sign in again."
	NotFoundMessage    = "Not found."
)

// describe turns a backend failure into a message for the page.
func describe(err error, fallback string) string {
	switch backend.KindOf(err) {
	case backend.KindUnavailable:
		return UnreachableMessage
	case backend.KindUnauthorized:
		return ExpiredMessage
	case backend.KindNotFound:
		return NotFoundMessage
	default:
		return fallback
	}
}
