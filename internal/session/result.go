package session

import (
	"errors"
	"fmt"

	"github.com/claude/fitfam/internal/backend"
)

// Kind is the outcome class of Init or Logout.
type Kind int

const (
	KindOK Kind = iota
	KindNoSession
	KindUnauthorized
	KindUnavailable
	KindCanceled
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNoSession:
		return "no_session"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result reports how Init or Logout went. The store's state has already been
// updated when a Result is returned; Result only lets callers tell "no
// session" apart from "backend unreachable".
type Result struct {
	Kind Kind
	Err  error
}

// OK reports whether the operation fully succeeded.
func (r Result) OK() bool { return r.Kind == KindOK }

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return r.Kind.String()
}

func failed(op string, err error) Result {
	kind := KindUnknown
	switch backend.KindOf(err) {
	case backend.KindUnauthorized:
		kind = KindUnauthorized
	case backend.KindUnavailable:
		kind = KindUnavailable
	case backend.KindCanceled:
		kind = KindCanceled
	}
	return Result{Kind: kind, Err: fmt.Errorf("%s: %w", op, err)}
}

// Sentinel errors for session lookups.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)
