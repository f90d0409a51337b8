// Package guard decides whether a request may reach a page and enforces that
// decision as HTTP middleware.
package guard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/claude/fitfam/internal/session"
)

// Decision is the outcome of Decide.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	// Wait means the session has not settled yet; run or await Init and
	// decide again.
	Wait
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case Wait:
		return "wait"
	default:
		return "unknown"
	}
}

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

var publicPrefixes = []string{"/static/"}

var publicPaths = map[string]bool{
	"/login":   true,
	"/signup":  true,
	"/healthz": true,
}

// IsProtected reports whether path needs an authenticated session. Unknown
// paths are treated as protected.
func IsProtected(path string) bool {
	if publicPaths[path] {
		return false
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}

// Decide applies the routing rules for path given the session status.
func Decide(path string, status session.Status) Decision {
	if !IsProtected(path) {
		return Allow
	}
	switch status {
	case session.StatusAuthenticated:
		return Allow
	case session.StatusUnauthenticated:
		return RedirectLogin
	default:
		return Wait
	}
}

// Saver persists a store after Init may have changed it.
type Saver interface {
	Save(ctx context.Context, id string, st *session.Store) error
}

// Middleware enforces Decide on every request. It expects the session to be
// attached to the request context already. A store that was signed out only
// because the backend was unreachable gets one more Init attempt.
func Middleware(saver Saver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, st, ok := session.FromContext(r.Context())
			if !ok {
				log.Error("guard: no session in request context", "path", r.URL.Path)
				deny(w, r)
				return
			}

			path := r.URL.Path
			if IsProtected(path) && st.Retryable() {
				initAndSave(r.Context(), saver, log, id, st)
			}

			d := Decide(path, st.Status())
			if d == Wait {
				initAndSave(r.Context(), saver, log, id, st)
				d = Decide(path, st.Status())
			}

			switch d {
			case Allow:
				next.ServeHTTP(w, r)
			case RedirectLogin:
				deny(w, r)
			default:
				// Still not settled: the request context ended mid-init.
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session is initializing", http.StatusServiceUnavailable)
			}
		})
	}
}

func initAndSave(ctx context.Context, saver Saver, log *slog.Logger, id string, st *session.Store) {
	res := st.Init(ctx)
	if res.Kind == session.KindCanceled {
		return
	}
	if err := saver.Save(ctx, id, st); err != nil {
		log.Error("saving session after init", "error", err)
	}
}

func deny(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"})
		return
	}
	http.Redirect(w, r, LoginURL(r), http.StatusSeeOther)
}

// LoginURL is the sign-in page for a denied request. Page loads come back
// to where they started after sign-in; form posts do not, since their
// target only accepts POST.
func LoginURL(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
}
