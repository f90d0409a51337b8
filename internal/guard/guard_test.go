package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/session"
	"golang.org/x/oauth2"
)

type stubAuth struct {
	tok  *oauth2.Token
	user *models.User
}

func (a stubAuth) GetSession(context.Context, *oauth2.Token) (*oauth2.Token, error) {
	return a.tok, nil
}

func (a stubAuth) GetCurrentUser(context.Context, *oauth2.Token) (*models.User, error) {
	return a.user, nil
}

func (a stubAuth) SignOut(context.Context, *oauth2.Token) error { return nil }

type countingSaver struct{ saves int }

func (s *countingSaver) Save(context.Context, string, *session.Store) error {
	s.saves++
	return nil
}

var protectedPaths = []string{"/dashboard", "/workouts", "/workouts/w1", "/partners", "/partners/p1", "/profile", "/api/v1/me", "/anything"}

func TestDecide(t *testing.T) {
	for _, path := range protectedPaths {
		if got := Decide(path, session.StatusUnauthenticated); got != RedirectLogin {
			t.Errorf("Decide(%q, unauthenticated) = %v, want redirect_login", path, got)
		}
		if got := Decide(path, session.StatusAuthenticated); got != Allow {
			t.Errorf("Decide(%q, authenticated) = %v, want allow", path, got)
		}
		for _, s := range []session.Status{session.StatusUninitialized, session.StatusInitializing} {
			if got := Decide(path, s); got != Wait {
				t.Errorf("Decide(%q, %v) = %v, want wait", path, s, got)
			}
		}
	}

	for _, path := range []string{"/login", "/signup", "/healthz", "/static/app.css"} {
		for _, s := range []session.Status{session.StatusUninitialized, session.StatusUnauthenticated} {
			if got := Decide(path, s); got != Allow {
				t.Errorf("Decide(%q, %v) = %v, want allow", path, s, got)
			}
		}
	}
}

func serveGuarded(t *testing.T, st *session.Store, path string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := Middleware(&countingSaver{}, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.Write([]byte("protected content"))
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req = req.WithContext(session.NewContext(req.Context(), "sid", st))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func TestMiddlewareRedirectsWithoutSession(t *testing.T) {
	for _, path := range protectedPaths {
		st := session.NewStore(stubAuth{}, nil)
		rec, reached := serveGuarded(t, st, path)
		if reached || strings.Contains(rec.Body.String(), "protected content") {
			t.Fatalf("%s: protected handler ran for a signed-out session", path)
		}
		if strings.HasPrefix(path, "/api/") {
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("%s: status = %d, want 401", path, rec.Code)
			}
			continue
		}
		want := LoginPath + "?next=" + url.QueryEscape(path)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != want {
			t.Errorf("%s: got %d to %q, want 303 to %q", path, rec.Code, rec.Header().Get("Location"), want)
		}
	}
}

func TestMiddlewareInitsBeforeDeciding(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: "u1", Email: "a@example.com"}
	tok := &oauth2.Token{AccessToken: "a"}
	auth := stubAuth{tok: tok, user: user}
	repo := session.NewMemoryRepo()

	// Persist a signed-in session, then load it through a second manager as
	// if the process had restarted: the store comes back uninitialized.
	first := session.NewManager(repo, auth, time.Hour, nil)
	st, id := first.Resolve(ctx, "")
	st.Login(user, tok)
	if err := first.Save(ctx, id, st); err != nil {
		t.Fatal(err)
	}
	restored, _ := session.NewManager(repo, auth, time.Hour, nil).Resolve(ctx, id)
	if restored.Status() != session.StatusUninitialized {
		t.Fatalf("restored status = %v", restored.Status())
	}

	rec, reached := serveGuarded(t, restored, "/workouts")
	if !reached || rec.Code != http.StatusOK {
		t.Errorf("restored: reached=%v code=%d", reached, rec.Code)
	}
	if !restored.IsAuthenticated() {
		t.Error("restored session should be authenticated after init")
	}

	// An uninitialized store with no token settles to unauthenticated and
	// is redirected, never flashed the page.
	anon := session.NewStore(auth, nil)
	rec, reached = serveGuarded(t, anon, "/workouts")
	if reached || rec.Code != http.StatusSeeOther {
		t.Errorf("anonymous: reached=%v code=%d", reached, rec.Code)
	}
	if anon.Status() != session.StatusUnauthenticated {
		t.Errorf("status = %v, want unauthenticated", anon.Status())
	}
}

func TestMiddlewareAllowsPublicPages(t *testing.T) {
	st := session.NewStore(stubAuth{}, nil)
	_, reached := serveGuarded(t, st, "/login")
	if !reached {
		t.Error("login page should be reachable without a session")
	}
	if st.Status() != session.StatusUninitialized {
		t.Errorf("public page should not trigger init, status = %v", st.Status())
	}
}

// TestMiddlewareRevalidatesExpiredSession verifies that a session whose token
// the backend rejected is checked again and signed out when the check fails.
func TestMiddlewareRevalidatesExpiredSession(t *testing.T) {
	st := session.NewStore(stubAuth{}, nil)
	st.Login(&models.User{ID: "u1"}, &oauth2.Token{AccessToken: "old"})
	if !st.Expire() {
		t.Fatal("Expire on an authenticated store returned false")
	}

	rec, reached := serveGuarded(t, st, "/workouts?week=current")
	if reached {
		t.Fatal("protected handler ran for a rejected token")
	}
	want := "/login?next=" + url.QueryEscape("/workouts?week=current")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != want {
		t.Errorf("got %d to %q, want 303 to %q", rec.Code, rec.Header().Get("Location"), want)
	}
	if st.Status() != session.StatusUnauthenticated || st.Token() != nil {
		t.Errorf("status = %v, token kept = %v", st.Status(), st.Token() != nil)
	}
}

func TestMiddlewareRefreshesExpiredSession(t *testing.T) {
	user := &models.User{ID: "u1"}
	fresh := &oauth2.Token{AccessToken: "fresh"}
	st := session.NewStore(stubAuth{tok: fresh, user: user}, nil)
	st.Login(user, &oauth2.Token{AccessToken: "old", RefreshToken: "r"})
	st.Expire()

	rec, reached := serveGuarded(t, st, "/workouts")
	if !reached || rec.Code != http.StatusOK {
		t.Fatalf("reached=%v code=%d", reached, rec.Code)
	}
	if tok := st.Token(); tok == nil || tok.AccessToken != "fresh" {
		t.Errorf("token = %+v, want the refreshed one", tok)
	}
}

func TestLoginURLOnlyReturnsToPageLoads(t *testing.T) {
	get := httptest.NewRequest(http.MethodGet, "/partners/p1", nil)
	if got := LoginURL(get); got != "/login?next=%2Fpartners%2Fp1" {
		t.Errorf("GET: %q", got)
	}
	post := httptest.NewRequest(http.MethodPost, "/workouts/w1/delete", nil)
	if got := LoginURL(post); got != LoginPath {
		t.Errorf("POST: %q", got)
	}
}
