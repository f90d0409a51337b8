package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/fitfam/internal/models"
	"github.com/claude/fitfam/internal/session"
	"github.com/claude/fitfam/internal/views"
)

var pageNames = []string{
	"dashboard",
	"workouts",
	"generator",
	"workout_details",
	"confirm_delete",
	"partners",
	"partner_comparison",
	"profile",
	"login",
	"signup",
}

var templateFuncs = template.FuncMap{
	"kg": func(v float64) string { return fmt.Sprintf("%.1f kg", v) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Mon, Jan 2")
	},
}

// renderer holds one template set per page, each sharing the layout.
type renderer struct {
	pages map[string]*template.Template
}

func newRenderer(webFS fs.FS) (*renderer, error) {
	r := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(webFS,
			"templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// alertTexts are the alerts a redirect can carry. The query holds the code,
// so a crafted link cannot put its own text on the page.
var alertTexts = map[string]string{
	"logout_failed":   LogoutFailedMessage,
	"delete_failed":   views.DeleteFailedMessage,
	"favorite_failed": views.FavoriteFailedMessage,
	"set_failed":      views.SetFailedMessage,
	"workout_missing": views.WorkoutNotFoundMessage,
	"workout_failed":  views.WorkoutLoadFailedMessage,
	"unreachable":     views.UnreachableMessage,
	"expired":         views.ExpiredMessage,
	"not_found":       views.NotFoundMessage,
	genericAlert:      "Something went wrong. Please try again.",
}

const genericAlert = "failed"

var alertCodes = func() map[string]string {
	m := make(map[string]string, len(alertTexts))
	for code, text := range alertTexts {
		m[text] = code
	}
	return m
}()

// alertCode returns the code for msg; messages without one travel as the
// generic alert.
func alertCode(msg string) string {
	if code, ok := alertCodes[msg]; ok {
		return code
	}
	return genericAlert
}

// alertsFrom resolves the alert codes in q, dropping unknown ones.
func alertsFrom(q url.Values) []string {
	var out []string
	for _, code := range q["alert"] {
		if text, ok := alertTexts[code]; ok {
			out = append(out, text)
		}
	}
	return out
}

type pageData struct {
	Title  string
	User   *models.User
	Alerts []string
	Next   string
	View   any
}

// render executes page into a buffer first so a template error never leaves a
// half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, view any) {
	t, ok := s.pages.pages[page]
	if !ok {
		s.log.Error("unknown page", "page", page)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:  title,
		Alerts: alertsFrom(r.URL.Query()),
		Next:   safeNext(r.FormValue("next"), ""),
		View:   view,
	}
	if _, st, ok := session.FromContext(r.Context()); ok {
		data.User = st.User()
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.log.Error("rendering page", "page", page, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// redirectWithAlerts sends the browser to path, carrying the codes of alerts
// raised while handling the form so the next page can show them.
func redirectWithAlerts(w http.ResponseWriter, r *http.Request, path string, alerts []string) {
	if len(alerts) > 0 {
		q := url.Values{}
		for _, msg := range alerts {
			q.Add("alert", alertCode(msg))
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + q.Encode()
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// safeNext returns next if it is a local path, otherwise fallback.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
