package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/fitfam/internal/session"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"
)

// TestCORSAllowedOrigin verifies that a listed origin gets credentialed CORS
// headers and that preflight requests stop at the middleware.
func TestCORSAllowedOrigin(t *testing.T) {
	reached := false
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/me", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
	if reached {
		t.Error("preflight reached the handler")
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want none", got)
	}
}

// TestSessionsIssuesCookie verifies that a request without a cookie gets a
// fresh session and a cookie naming it, and that presenting the cookie again
// resolves the same store without a new cookie.
func TestSessionsIssuesCookie(t *testing.T) {
	m := session.NewManager(session.NewMemoryRepo(), newFakeBackend(), time.Hour, nil)
	opts := Options{CookieName: "sid", SecureCookies: true}

	var seen *session.Store
	h := Sessions(m, opts, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, st, ok := session.FromContext(r.Context())
		if !ok {
			t.Fatal("no session in context")
		}
		seen = st
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != "sid" || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie = %+v", c)
	}
	if c.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", c.MaxAge)
	}
	first := seen

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: c.Value})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie reissued for a known session")
	}
	if seen != first {
		t.Error("known session resolved to a different store")
	}
}

type stubWhoIs struct {
	login string
	err   error
}

func (s stubWhoIs) WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &apitype.WhoIsResponse{UserProfile: &tailcfg.UserProfile{LoginName: s.login}}, nil
}

// TestRequestLoggingTailnetUser verifies that requests arriving over the
// tailnet are logged with the caller's login.
func TestRequestLoggingTailnetUser(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	s := &Server{log: log, whois: stubWhoIs{login: "alice@example.com"}}

	h := s.tailnetIdentity(RequestLogging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	out := buf.String()
	if !strings.Contains(out, "status=418") {
		t.Errorf("log missing status: %s", out)
	}
	if !strings.Contains(out, "tailnet_user=alice@example.com") {
		t.Errorf("log missing tailnet user: %s", out)
	}
}

func TestTailnetIdentityLookupFailure(t *testing.T) {
	s := &Server{log: slog.Default(), whois: stubWhoIs{err: errors.New("no such peer")}}
	reached := false
	h := s.tailnetIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		if tailnetLogin(r.Context()) != "" {
			t.Error("login set despite failed lookup")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !reached {
		t.Error("request did not reach the handler")
	}
}
