package server

import (
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/claude/fitfam/internal/guard"
	"github.com/claude/fitfam/internal/session"
	"github.com/claude/fitfam/internal/views"
	"github.com/go-chi/chi/v5"
)

// Options tunes cookies and CORS.
type Options struct {
	CookieName     string
	SecureCookies  bool
	AllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	sessions *session.Manager
	backend  views.Backend
	pages    *renderer
	static   fs.FS
	opts     Options
	log      *slog.Logger
	whois    WhoIsClient
	router   chi.Router
}

// New creates a new Server with all routes configured. webFS must hold the
// templates/ and static/ directories.
func New(sessions *session.Manager, backend views.Backend, webFS fs.FS, opts Options, log *slog.Logger) (*Server, error) {
	pages, err := newRenderer(webFS)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	static, err := fs.Sub(webFS, "static")
	if err != nil {
		return nil, fmt.Errorf("loading static assets: %w", err)
	}
	if opts.CookieName == "" {
		opts.CookieName = "fitfam_session"
	}

	s := &Server{
		sessions: sessions,
		backend:  backend,
		pages:    pages,
		static:   static,
		opts:     opts,
		log:      log,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale enables tailnet identity logging for requests that arrive
// over tsnet.
func (s *Server) SetTailscale(c WhoIsClient) {
	s.whois = c
}

func (s *Server) routes() {
	s.router.Use(s.tailnetIdentity)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS(s.opts.AllowedOrigins))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(s.static)))

	s.router.Group(func(r chi.Router) {
		r.Use(Sessions(s.sessions, s.opts, s.log))

		// Public pages
		r.Get("/", redirectTo("/dashboard"))
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/signup", s.handleSignupPage)
		r.Post("/signup", s.handleSignup)
		r.Post("/logout", s.handleLogout)

		// Everything else needs a signed-in session
		r.Group(func(r chi.Router) {
			r.Use(guard.Middleware(s.sessions, s.log))

			r.Get("/dashboard", s.handleDashboard)

			r.Get("/workouts", s.handleWorkouts)
			r.Get("/workouts/generator", s.handleGeneratorPage)
			r.Post("/workouts/generator/open", redirectTo("/workouts/generator"))
			r.Post("/workouts/generator/close", s.handleGeneratorClose)
			r.Post("/workouts/generate", s.handleGenerate)
			r.Get("/workouts/{workoutId}", s.handleWorkoutDetails)
			r.Post("/workouts/{workoutId}/favorite", s.handleToggleFavorite)
			r.Get("/workouts/{workoutId}/delete", s.handleConfirmDelete)
			r.Post("/workouts/{workoutId}/delete", s.handleDelete)
			r.Post("/workouts/{workoutId}/sets/{setId}/toggle", s.handleToggleSet)

			r.Get("/partners", s.handlePartners)
			r.Get("/partners/{partnerId}", s.handlePartnerComparison)

			r.Get("/profile", s.handleProfile)
			r.Post("/profile", s.handleSaveProfile)

			r.Get("/api/v1/me", s.handleMe)
			r.Get("/api/v1/workouts", s.handleWorkoutsJSON)
		})
	})

	s.router.NotFound(redirectTo("/dashboard"))
}

func redirectTo(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusSeeOther)
	}
}
