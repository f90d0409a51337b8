package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed backend call.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindInvalid
	KindUnavailable
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindUnavailable:
		return "unavailable"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against *Error.
var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
	ErrInvalid      = errors.New("backend: invalid request")
	ErrUnavailable  = errors.New("backend: unavailable")
)

// Error is returned by every HTTPClient method that fails.
type Error struct {
	Op      string
	Status  int
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("backend: %s returned %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("backend: %s returned %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("backend: %s: %v", e.Op, e.Err)
	default:
		return "backend: " + e.Op + ": " + e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalid:
		return e.Kind == KindInvalid
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

// KindOf extracts the classification of err. Errors not produced by this
// package are KindUnknown, except context cancellation.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindInvalid
	case status == http.StatusTooManyRequests, status >= 500:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

func transportError(op string, err error) *Error {
	kind := KindUnavailable
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCanceled
	}
	return &Error{Op: op, Kind: kind, Err: err}
}
