package portal

import (
	"net/http"
	"time"

	"grimm.is/netguard/internal/clock"
	"grimm.is/netguard/internal/i18n"
	"grimm.is/netguard/internal/metrics"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	for path, p := range captiveProbes {
		mux.HandleFunc("GET "+path, s.handleProbe(p))
	}

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/session", s.handleAPISession)
	mux.HandleFunc("/", s.handleFallback)

	var h http.Handler = mux
	h = s.maxBodyMiddleware(s.srvCfg.MaxBodyBytes)(h)
	h = noCacheMiddleware(h)
	// Logging sits inside i18n so it sees the request the mux annotates.
	h = s.loggingMiddleware(h)
	h = i18n.Middleware(h)
	return h
}

// noCacheMiddleware stops browsers and OS captive assistants from caching
// portal answers across an authorization change.
func noCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests and records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clock.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		route := r.Pattern
		if route == "" {
			route = "other"
		}
		metrics.Get().RecordAPIRequest(r.Method, route, wrapped.statusCode, duration.Seconds())

		args := []any{"method", r.Method, "path", r.URL.Path, "status", wrapped.statusCode,
			"client", clientIP(r), "duration", duration.Round(time.Millisecond)}
		if wrapped.statusCode >= 500 {
			s.logger.Error("request", args...)
		} else {
			s.logger.Debug("request", args...)
		}
	})
}

// maxBodyMiddleware limits the size of request bodies.
func (s *Server) maxBodyMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
