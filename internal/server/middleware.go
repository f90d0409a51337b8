package server

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/claude/fitfam/internal/session"
	"tailscale.com/client/tailscale/apitype"
)

// RequestLogging returns middleware that logs each request.
func RequestLogging(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
			}
			if login := tailnetLogin(r.Context()); login != "" {
				attrs = append(attrs, "tailnet_user", login)
			}
			log.Info("request", attrs...)
		})
	}
}

// CORS lets the listed origins call the API with the session cookie. With no
// origins configured it adds nothing.
func CORS(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !slices.Contains(origins, origin) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sessions resolves the session cookie to a store and attaches it to the
// request context. A new cookie is issued whenever the id changes.
func Sessions(m *session.Manager, opts Options, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var presented string
			if c, err := r.Cookie(opts.CookieName); err == nil {
				presented = c.Value
			}
			st, id := m.Resolve(r.Context(), presented)
			if id != presented {
				if presented != "" {
					log.Debug("session cookie replaced", "path", r.URL.Path)
				}
				setSessionCookie(w, opts, id, m.MaxAge())
			}
			next.ServeHTTP(w, r.WithContext(session.NewContext(r.Context(), id, st)))
		})
	}
}

func setSessionCookie(w http.ResponseWriter, opts Options, id string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     opts.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// WhoIsClient resolves a tailnet peer address to its owner.
type WhoIsClient interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

type tailnetLoginKey struct{}

// tailnetIdentity records the tailnet login of the caller for request logs
// when the server listens on tsnet.
func (s *Server) tailnetIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			next.ServeHTTP(w, r)
			return
		}
		who, err := s.whois.WhoIs(r.Context(), r.RemoteAddr)
		if err != nil || who == nil || who.UserProfile == nil {
			s.log.Debug("tailnet whois failed", "remote", r.RemoteAddr, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), tailnetLoginKey{}, who.UserProfile.LoginName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tailnetLogin(ctx context.Context) string {
	login, _ := ctx.Value(tailnetLoginKey{}).(string)
	return login
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
