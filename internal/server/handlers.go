package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/claude/fitfam/internal/backend"
	"github.com/claude/fitfam/internal/guard"
	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/session"
	"github.com/claude/fitfam/internal/views"
	"github.com/go-chi/chi/v5"
)

// LogoutFailedMessage is shown when the backend could not be told about a
// sign-out. The local session is gone either way.
const LogoutFailedMessage = "You have been signed out on this device, but the server could not be reached."

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// current returns the session attached by the Sessions middleware.
func current(r *http.Request) (string, *session.Store) {
	id, st, _ := session.FromContext(r.Context())
	return id, st
}

func (s *Server) deps(r *http.Request, alerts views.Alerter, confirm views.Confirmer) views.Deps {
	_, st := current(r)
	return views.Deps{
		Backend: s.backend,
		Session: st,
		Alert:   alerts,
		Confirm: confirm,
		Log:     s.log,
	}
}

// settle runs Init on a session nobody has checked yet and persists the
// outcome.
func (s *Server) settle(ctx context.Context, id string, st *session.Store) {
	if st.Status().Settled() && !st.Retryable() {
		return
	}
	if res := st.Init(ctx); res.Kind == session.KindCanceled {
		return
	}
	if err := s.sessions.Save(ctx, id, st); err != nil {
		s.log.Error("saving session", "error", err)
	}
}

// revalidate checks a session again after a view saw the backend reject its
// token. It reports whether the request was answered by sending the browser
// to sign in.
func (s *Server) revalidate(w http.ResponseWriter, r *http.Request) bool {
	id, st := current(r)
	if st.IsAuthenticated() {
		return false
	}
	s.settle(r.Context(), id, st)
	if st.IsAuthenticated() {
		return false
	}
	http.Redirect(w, r, guard.LoginURL(r), http.StatusSeeOther)
	return true
}

// --- Sign in, sign up, sign out ---

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	id, st := current(r)
	s.settle(r.Context(), id, st)
	if st.IsAuthenticated() {
		http.Redirect(w, r, safeNext(r.URL.Query().Get("next"), "/dashboard"), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", "Sign in", views.NewLoginForm(s.deps(r, nil, nil)))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := views.NewLoginForm(s.deps(r, nil, nil))
	if !form.Submit(r.Context(), r.PostFormValue("email"), r.PostFormValue("password")) {
		s.render(w, r, http.StatusUnauthorized, "login", "Sign in", form)
		return
	}
	s.signedIn(w, r)
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	id, st := current(r)
	s.settle(r.Context(), id, st)
	if st.IsAuthenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "signup", "Create account", views.NewSignupForm(s.deps(r, nil, nil)))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := views.NewSignupForm(s.deps(r, nil, nil))
	req := models.SignUpRequest{
		Email:       r.PostFormValue("email"),
		Password:    r.PostFormValue("password"),
		DisplayName: r.PostFormValue("display_name"),
	}
	if !form.Submit(r.Context(), req, r.PostFormValue("confirm_password")) {
		s.render(w, r, http.StatusBadRequest, "signup", "Create account", form)
		return
	}
	s.signedIn(w, r)
}

// signedIn moves a freshly authenticated store to a new session id and sends
// the browser on.
func (s *Server) signedIn(w http.ResponseWriter, r *http.Request) {
	oldID, st := current(r)
	id, err := s.sessions.Rotate(r.Context(), oldID, st)
	if err != nil {
		s.log.Error("persisting session after sign in", "error", err)
	}
	setSessionCookie(w, s.opts, id, s.sessions.MaxAge())
	http.Redirect(w, r, safeNext(r.PostFormValue("next"), "/dashboard"), http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, st := current(r)
	var alerts []string
	if res := st.Logout(r.Context()); !res.OK() {
		alerts = append(alerts, LogoutFailedMessage)
	}
	if err := s.sessions.Save(r.Context(), id, st); err != nil {
		s.log.Error("forgetting session", "error", err)
	}
	redirectWithAlerts(w, r, "/login", alerts)
}

// --- Pages ---

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	v := views.NewDashboard(s.deps(r, nil, nil))
	v.Mount(r.Context())
	defer v.Unmount()
	if s.revalidate(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "dashboard", "Dashboard", v)
}

func (s *Server) handleWorkouts(w http.ResponseWriter, r *http.Request) {
	p := views.NewWorkoutsPage(s.deps(r, nil, nil))
	p.Mount(r.Context())
	defer p.Unmount()
	if s.revalidate(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "workouts", "Workouts", p)
}

func (s *Server) handleGeneratorPage(w http.ResponseWriter, r *http.Request) {
	g := views.NewGenerator(s.deps(r, nil, nil), nil)
	g.Open()
	s.render(w, r, http.StatusOK, "generator", "Generate a workout", g)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	g := views.NewGenerator(s.deps(r, nil, nil), nil)
	g.Open()

	req := models.GenerateRequest{
		Focus:      r.PostFormValue("focus"),
		Difficulty: models.Difficulty(r.PostFormValue("difficulty")),
		Equipment:  splitList(r.PostFormValue("equipment")),
	}
	if n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue("duration"))); err == nil {
		req.DurationMin = n
	}

	status := http.StatusOK
	if _, err := g.Generate(r.Context(), req); err != nil {
		if s.revalidate(w, r) {
			return
		}
		status = statusFor(err)
	}
	s.render(w, r, status, "generator", "Generate a workout", g)
}

func (s *Server) handleWorkoutDetails(w http.ResponseWriter, r *http.Request) {
	v := views.NewWorkoutDetails(s.deps(r, nil, nil), chi.URLParam(r, "workoutId"))
	v.Mount(r.Context())
	defer v.Unmount()
	if s.revalidate(w, r) {
		return
	}

	status := http.StatusOK
	if v.NotFound {
		status = http.StatusNotFound
	}
	s.render(w, r, status, "workout_details", "Workout", v)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	alerts := &views.Alerts{}
	workout := models.Workout{
		ID:         chi.URLParam(r, "workoutId"),
		IsFavorite: r.PostFormValue("favorite") == "true",
	}
	if !views.NewCard(s.deps(r, alerts, nil), workout).ToggleFavorite(r.Context()) && s.revalidate(w, r) {
		return
	}
	redirectWithAlerts(w, r, safeNext(r.PostFormValue("next"), "/workouts"), alerts.Messages())
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	view := struct {
		WorkoutID string
		Message   string
	}{chi.URLParam(r, "workoutId"), views.ConfirmDeleteMessage}
	s.render(w, r, http.StatusOK, "confirm_delete", "Delete workout", view)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	alerts := &views.Alerts{}
	confirmed := views.ConfirmFunc(func(string) bool { return r.PostFormValue("confirm") == "yes" })
	card := views.NewCard(s.deps(r, alerts, confirmed), models.Workout{ID: chi.URLParam(r, "workoutId")})
	card.OnDelete = func(context.Context) {
		// Loading /workouts again refetches the whole list.
		http.Redirect(w, r, "/workouts", http.StatusSeeOther)
	}
	if card.Delete(r.Context()) || s.revalidate(w, r) {
		return
	}
	redirectWithAlerts(w, r, "/workouts", alerts.Messages())
}

func (s *Server) handleGeneratorClose(w http.ResponseWriter, r *http.Request) {
	g := views.NewGenerator(s.deps(r, nil, nil), func(context.Context) {
		http.Redirect(w, r, "/workouts", http.StatusSeeOther)
	})
	g.Close(r.Context())
}

func (s *Server) handleToggleSet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	workoutID := chi.URLParam(r, "workoutId")
	back := "/workouts/" + workoutID

	alerts := &views.Alerts{}
	v := views.NewWorkoutDetails(s.deps(r, alerts, nil), workoutID)
	v.Mount(r.Context())
	defer v.Unmount()
	if s.revalidate(w, r) {
		return
	}
	if v.Workout == nil {
		redirectWithAlerts(w, r, back, []string{v.Err})
		return
	}
	if !v.ToggleSet(r.Context(), r.PostFormValue("exercise"), chi.URLParam(r, "setId")) && s.revalidate(w, r) {
		return
	}
	redirectWithAlerts(w, r, back, alerts.Messages())
}

func (s *Server) handlePartners(w http.ResponseWriter, r *http.Request) {
	v := views.NewPartners(s.deps(r, nil, nil))
	v.Mount(r.Context())
	defer v.Unmount()
	if s.revalidate(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "partners", "Partners", v)
}

func (s *Server) handlePartnerComparison(w http.ResponseWriter, r *http.Request) {
	v := views.NewPartnerComparison(s.deps(r, nil, nil), chi.URLParam(r, "partnerId"))
	v.Mount(r.Context())
	defer v.Unmount()
	if s.revalidate(w, r) {
		return
	}
	s.render(w, r, http.StatusOK, "partner_comparison", "Compare", v)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	v := views.NewProfile(s.deps(r, nil, nil))
	v.Mount(r.Context())
	s.render(w, r, http.StatusOK, "profile", "Profile", v)
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, st := current(r)
	v := views.NewProfile(s.deps(r, nil, nil))
	v.Mount(r.Context())

	upd := models.ProfileUpdate{
		DisplayName: r.PostFormValue("display_name"),
		Username:    r.PostFormValue("username"),
		FitnessGoal: r.PostFormValue("fitness_goal"),
	}
	if err := v.Save(r.Context(), upd); err != nil {
		if s.revalidate(w, r) {
			return
		}
		s.render(w, r, statusFor(err), "profile", "Profile", v)
		return
	}
	if err := s.sessions.Save(r.Context(), id, st); err != nil {
		s.log.Error("saving session after profile update", "error", err)
	}
	s.render(w, r, http.StatusOK, "profile", "Profile", v)
}

// --- JSON API ---

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	_, st := current(r)
	writeJSON(w, http.StatusOK, st.User())
}

func (s *Server) handleWorkoutsJSON(w http.ResponseWriter, r *http.Request) {
	id, st := current(r)
	workouts, err := s.backend.GetCurrentWeekWorkouts(r.Context(), st.Token())
	if err != nil {
		s.log.Error("listing workouts", "error", err)
		if backend.KindOf(err) == backend.KindUnauthorized && st.Expire() {
			s.settle(r.Context(), id, st)
		}
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	if workouts == nil {
		workouts = []models.Workout{}
	}
	writeJSON(w, http.StatusOK, workouts)
}

// --- Helpers ---

// statusFor maps a view or backend error to the response status.
func statusFor(err error) int {
	if errors.Is(err, views.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	switch backend.KindOf(err) {
	case backend.KindUnauthorized:
		return http.StatusUnauthorized
	case backend.KindNotFound:
		return http.StatusNotFound
	case backend.KindInvalid:
		return http.StatusBadRequest
	case backend.KindUnavailable, backend.KindCanceled:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
