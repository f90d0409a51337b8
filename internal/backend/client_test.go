package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/claude/fitfam/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// newTestServer routes requests to handlers keyed by "METHOD /path".
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

func newTestClient(url string) *HTTPClient {
	return NewHTTPClient(Options{BaseURL: url + "/", APIKey: "project-key", ClientID: "fitfam-web", Timeout: 5 * time.Second})
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}).SignedString([]byte("test"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// TestGetCurrentWeekWorkouts verifies the bearer token and API key are sent and
// the workout array is decoded.
func TestGetCurrentWeekWorkouts(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/workouts/week": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer access-1" {
				t.Errorf("Authorization = %q, want Bearer access-1", got)
			}
			if got := r.Header.Get("X-API-Key"); got != "project-key" {
				t.Errorf("X-API-Key = %q, want project-key", got)
			}
			writeTestJSON(t, w, []models.Workout{{ID: "w1", Title: "Legs", Difficulty: models.DifficultyHard}})
		},
	})

	client := newTestClient(ts.URL)
	workouts, err := client.GetCurrentWeekWorkouts(context.Background(), &oauth2.Token{AccessToken: "access-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(workouts) != 1 || workouts[0].Title != "Legs" {
		t.Fatalf("workouts = %+v", workouts)
	}
}

// TestDeleteAndFavorite verifies the mutating workout calls use the right verbs
// and payloads.
func TestDeleteAndFavorite(t *testing.T) {
	var deleted, favorited bool
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"DELETE /api/v1/workouts/w1": func(w http.ResponseWriter, r *http.Request) {
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		},
		"PUT /api/v1/workouts/w1/favorite": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]bool
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if !body["is_favorite"] {
				t.Errorf("is_favorite = false, want true")
			}
			favorited = true
			w.WriteHeader(http.StatusNoContent)
		},
	})

	client := newTestClient(ts.URL)
	tok := &oauth2.Token{AccessToken: "a"}
	if err := client.DeleteWorkout(context.Background(), tok, "w1"); err != nil {
		t.Fatal(err)
	}
	if err := client.ToggleFavorite(context.Background(), tok, "w1", true); err != nil {
		t.Fatal(err)
	}
	if !deleted || !favorited {
		t.Errorf("deleted=%v favorited=%v, want both true", deleted, favorited)
	}
}

// TestErrorClassification verifies HTTP statuses map onto the sentinel errors.
func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		target error
		kind   Kind
	}{
		{http.StatusUnauthorized, ErrUnauthorized, KindUnauthorized},
		{http.StatusForbidden, ErrUnauthorized, KindUnauthorized},
		{http.StatusNotFound, ErrNotFound, KindNotFound},
		{http.StatusUnprocessableEntity, ErrInvalid, KindInvalid},
		{http.StatusServiceUnavailable, ErrUnavailable, KindUnavailable},
	}
	for _, tc := range cases {
		ts := newTestServer(t, map[string]http.HandlerFunc{
			"GET /api/v1/partners": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			},
		})
		_, err := newTestClient(ts.URL).ListPartners(context.Background(), &oauth2.Token{AccessToken: "a"})
		if !errors.Is(err, tc.target) {
			t.Errorf("status %d: err = %v, want %v", tc.status, err, tc.target)
		}
		if got := KindOf(err); got != tc.kind {
			t.Errorf("status %d: KindOf = %v, want %v", tc.status, got, tc.kind)
		}
	}
}

// TestUnreachableBackend verifies transport failures are reported as unavailable.
func TestUnreachableBackend(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newTestClient(url).GetCurrentWeekWorkouts(context.Background(), &oauth2.Token{AccessToken: "a"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

// TestSignInPasswordGrant verifies sign-in uses the OAuth2 password grant.
func TestSignInPasswordGrant(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /auth/v1/token": func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			if got := r.Form.Get("grant_type"); got != "password" {
				t.Errorf("grant_type = %q, want password", got)
			}
			if r.Form.Get("username") != "a@example.com" || r.Form.Get("password") != "hunter22" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			writeTestJSON(t, w, map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
			})
		},
	})
	client := newTestClient(ts.URL)

	tok, err := client.SignIn(context.Background(), "a@example.com", "hunter22")
	if err != nil {
		t.Fatal(err)
	}
	if tok.AccessToken != "access-1" || tok.RefreshToken != "refresh-1" {
		t.Errorf("token = %+v", tok)
	}

	_, err = client.SignIn(context.Background(), "a@example.com", "wrong")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad credentials err = %v, want ErrUnauthorized", err)
	}
}

// TestGetSession covers the no-token, active, revoked and refresh paths.
func TestGetSession(t *testing.T) {
	var refreshed bool
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /auth/v1/session": func(w http.ResponseWriter, r *http.Request) {
			switch r.Header.Get("Authorization") {
			case "Bearer revoked":
				w.WriteHeader(http.StatusUnauthorized)
			default:
				writeTestJSON(t, w, map[string]bool{"active": true})
			}
		},
		"POST /auth/v1/token": func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			if got := r.Form.Get("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q, want refresh_token", got)
			}
			refreshed = true
			writeTestJSON(t, w, map[string]any{"access_token": "fresh", "token_type": "bearer", "expires_in": 3600})
		},
	})
	client := newTestClient(ts.URL)
	ctx := context.Background()

	if tok, err := client.GetSession(ctx, nil); tok != nil || err != nil {
		t.Errorf("nil token: got %v, %v", tok, err)
	}

	live := &oauth2.Token{AccessToken: signedJWT(t, time.Now().Add(time.Hour))}
	if tok, err := client.GetSession(ctx, live); err != nil || tok != live {
		t.Errorf("live token: got %v, %v", tok, err)
	}

	if tok, err := client.GetSession(ctx, &oauth2.Token{AccessToken: "revoked"}); tok != nil || err != nil {
		t.Errorf("revoked token: got %v, %v", tok, err)
	}

	expired := &oauth2.Token{AccessToken: signedJWT(t, time.Now().Add(-time.Hour)), RefreshToken: "r1"}
	tok, err := client.GetSession(ctx, expired)
	if err != nil {
		t.Fatal(err)
	}
	if !refreshed || tok == nil || tok.AccessToken != "fresh" {
		t.Errorf("expired token: refreshed=%v tok=%v", refreshed, tok)
	}

	noRefresh := &oauth2.Token{AccessToken: signedJWT(t, time.Now().Add(-time.Hour))}
	if tok, err := client.GetSession(ctx, noRefresh); tok != nil || err != nil {
		t.Errorf("expired without refresh: got %v, %v", tok, err)
	}
}

// TestGetCurrentUserNull verifies a null body means no user rather than an error.
func TestGetCurrentUserNull(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /auth/v1/user": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("null"))
		},
	})
	u, err := newTestClient(ts.URL).GetCurrentUser(context.Background(), &oauth2.Token{AccessToken: "a"})
	if err != nil || u != nil {
		t.Errorf("GetCurrentUser = %v, %v, want nil, nil", u, err)
	}
}

// TestTokenExpiry verifies explicit expiry wins and JWT exp is the fallback.
func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	explicit := now.Add(time.Minute).Truncate(time.Second)
	if got := TokenExpiry(&oauth2.Token{AccessToken: "opaque", Expiry: explicit}); !got.Equal(explicit) {
		t.Errorf("explicit expiry = %v, want %v", got, explicit)
	}
	if got := TokenExpiry(&oauth2.Token{AccessToken: "opaque"}); !got.IsZero() {
		t.Errorf("opaque expiry = %v, want zero", got)
	}
	if TokenExpired(&oauth2.Token{AccessToken: "opaque"}, now) {
		t.Error("opaque token without expiry should be treated as live")
	}
	if !TokenExpired(&oauth2.Token{AccessToken: signedJWT(t, now.Add(5*time.Second))}, now) {
		t.Error("token inside the leeway should be expired")
	}
}
