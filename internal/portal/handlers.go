package portal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"

	"grimm.is/netguard/internal/i18n"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

func parsePages() (*template.Template, error) {
	// T is replaced per request with the client's printer.
	placeholder := template.FuncMap{"T": func(key string, args ...any) string { return fmt.Sprintf(key, args...) }}
	t, err := template.New("portal").Funcs(placeholder).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse portal templates: %w", err)
	}
	return t, nil
}

// probe is an OS connectivity check and the body it expects once online.
type probe struct {
	status      int
	contentType string
	body        string
}

var captiveProbes = map[string]probe{
	"/generate_204":        {status: http.StatusNoContent},
	"/gen_204":             {status: http.StatusNoContent},
	"/hotspot-detect.html": {http.StatusOK, "text/html", "<HTML><HEAD><TITLE>Success</TITLE></HEAD><BODY>Success</BODY></HTML>"},
	"/ncsi.txt":            {http.StatusOK, "text/plain", "Microsoft NCSI"},
	"/connecttest.txt":     {http.StatusOK, "text/plain", "Microsoft Connect Test"},
	"/success.txt":         {http.StatusOK, "text/plain", "success\n"},
}

// Login attempt outcomes.
const (
	loginSuccess   = "success"
	loginFailure   = "failure"
	loginThrottled = "throttled"
	loginNoDevice  = "no_device"
	loginInvalid   = "invalid"
)

type pageData struct {
	Lang      string
	Username  string
	Error     string
	Notice    string
	Session   session.Session
	Remaining string
}

func (s *Server) handleProbe(p probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.sessions.GetSession(clientIP(r)); !ok {
			s.redirectToLogin(w, r)
			return
		}
		if p.contentType != "" {
			w.Header().Set("Content-Type", p.contentType)
		}
		w.WriteHeader(p.status)
		if p.body != "" {
			io.WriteString(w, p.body)
		}
	}
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.portalURL("/login"), http.StatusFound)
}

// handleFallback catches every request the client's browser made for some
// other site and was redirected here.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.GetSession(clientIP(r)); ok {
		http.Redirect(w, r, s.portalURL("/status"), http.StatusFound)
		return
	}
	s.redirectToLogin(w, r)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessions.GetSession(clientIP(r)); ok {
		http.Redirect(w, r, "/status", http.StatusSeeOther)
		return
	}
	p := i18n.GetPrinter(r.Context())
	data := pageData{}
	if r.URL.Query().Get("signed_out") != "" {
		data.Notice = p.Sprintf(i18n.MsgSignedOut)
	}
	s.render(w, r, http.StatusOK, "login", data)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	p := i18n.GetPrinter(r.Context())

	if err := r.ParseForm(); err != nil {
		metrics.Get().LoginAttempts.WithLabelValues(loginInvalid).Inc()
		s.render(w, r, http.StatusBadRequest, "login", pageData{Error: p.Sprintf(i18n.MsgMissingFields)})
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		metrics.Get().LoginAttempts.WithLabelValues(loginInvalid).Inc()
		s.render(w, r, http.StatusBadRequest, "login", pageData{Username: username, Error: p.Sprintf(i18n.MsgMissingFields)})
		return
	}

	limiter := s.loginLimiter()
	if !limiter.Allow(ip) {
		wait := int(math.Ceil(limiter.RetryAfter(ip).Seconds()))
		if wait < 1 {
			wait = 1
		}
		metrics.Get().LoginAttempts.WithLabelValues(loginThrottled).Inc()
		s.logger.Warn("login throttled", "ip", ip, "username", username)
		w.Header().Set("Retry-After", fmt.Sprint(wait))
		s.render(w, r, http.StatusTooManyRequests, "login", pageData{Username: username, Error: p.Sprintf(i18n.MsgTooManyAttempts, wait)})
		return
	}

	if err := s.auth.Authenticate(username, password); err != nil {
		metrics.Get().LoginAttempts.WithLabelValues(loginFailure).Inc()
		s.logger.Info("login failed", "ip", ip, "username", username)
		s.render(w, r, http.StatusUnauthorized, "login", pageData{Username: username, Error: p.Sprintf(i18n.MsgInvalidLogin)})
		return
	}

	if !s.sessions.CreateSession(r.Context(), ip, username) {
		metrics.Get().LoginAttempts.WithLabelValues(loginNoDevice).Inc()
		s.render(w, r, http.StatusForbidden, "login", pageData{Username: username, Error: p.Sprintf(i18n.MsgDeviceUnknown)})
		return
	}

	limiter.Reset(ip)
	metrics.Get().LoginAttempts.WithLabelValues(loginSuccess).Inc()
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.EndSession(clientIP(r))
	http.Redirect(w, r, "/login?signed_out=1", http.StatusSeeOther)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.GetSession(clientIP(r))
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "status", pageData{
		Session:   sess,
		Remaining: formatRemaining(s.sessions.Remaining(sess)),
	})
}

type sessionResponse struct {
	Username         string    `json:"username"`
	IP               string    `json:"ip"`
	MAC              string    `json:"mac"`
	CreatedAt        time.Time `json:"created_at"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.GetSession(clientIP(r))
	if !ok {
		WriteError(w, http.StatusNotFound, "no active session")
		return
	}
	WriteJSON(w, http.StatusOK, sessionResponse{
		Username:         sess.Username,
		IP:               sess.IP,
		MAC:              sess.MAC,
		CreatedAt:        sess.CreatedAt,
		RemainingSeconds: int64(s.sessions.Remaining(sess) / time.Second),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	p := i18n.GetPrinter(r.Context())
	lang := w.Header().Get("Content-Language")
	if lang == "" {
		lang = language.English.String()
	}
	data.Lang = lang

	t, err := s.pages.Clone()
	if err != nil {
		s.logger.Error("clone templates", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	t.Funcs(template.FuncMap{"T": func(key string, args ...any) string { return p.Sprintf(key, args...) }})

	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, page, data); err != nil {
		s.logger.Error("render page", "page", page, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, buf.String())
}

func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error body.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
