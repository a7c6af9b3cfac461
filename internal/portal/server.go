// Package portal serves the captive login pages.
//
// Unauthorized clients reach the portal through the gateway's HTTP redirect.
// The client is identified solely by the TCP peer address: the portal sits
// on the LAN segment, so no forwarding headers are trusted.
package portal

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/ratelimit"
	"grimm.is/netguard/internal/services"
	"grimm.is/netguard/internal/session"
)

// Sessions is the admission contract the portal drives.
type Sessions interface {
	CreateSession(ctx context.Context, ip, username string) bool
	EndSession(ip string) bool
	GetSession(ip string) (session.Session, bool)
	Remaining(s session.Session) time.Duration
}

// Authenticator checks portal credentials.
type Authenticator interface {
	Authenticate(username, password string) error
}

// ServerConfig holds HTTP hardening limits.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration // Slowloris prevention
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
}

// DefaultServerConfig returns secure default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 14,
		MaxBodyBytes:      16 << 10, // a login form is tiny
	}
}

// Server is the captive portal HTTP service.
type Server struct {
	sessions Sessions
	auth     Authenticator
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
	srvCfg   *ServerConfig
	pages    *template.Template
	handler  http.Handler

	mu       sync.RWMutex
	listen   string
	portalIP string
	port     int
	srv      *http.Server
	addr     string
	running  bool
	cancel   context.CancelFunc
}

// NewServer creates a stopped portal.
func NewServer(cfg *config.Config, sessions Sessions, auth Authenticator, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.WithComponent("portal")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		sessions: sessions,
		auth:     auth,
		logger:   logger,
		srvCfg:   DefaultServerConfig(),
		pages:    pages,
	}
	s.apply(cfg)
	s.handler = s.routes()
	return s, nil
}

func (s *Server) apply(cfg *config.Config) {
	s.listen = cfg.Portal.Listen
	s.portalIP = cfg.Gateway.PortalIP
	s.port = cfg.Portal.Port
	s.limiter = ratelimit.NewLimiter(cfg.Portal.LoginAttempts, cfg.Portal.LoginWindowDuration(), nil)
}

// Handler returns the portal's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Name returns the service name.
func (s *Server) Name() string {
	return "portal"
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("portal listen %s: %w", s.listen, err)
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.srvCfg.ReadHeaderTimeout,
		ReadTimeout:       s.srvCfg.ReadTimeout,
		WriteTimeout:      s.srvCfg.WriteTimeout,
		IdleTimeout:       s.srvCfg.IdleTimeout,
		MaxHeaderBytes:    s.srvCfg.MaxHeaderBytes,
	}
	srv := s.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("portal server error", "error", err)
		}
	}()

	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.limiter.RunCleanup(cleanupCtx, time.Minute)

	s.addr = ln.Addr().String()
	s.running = true
	s.logger.Info("portal started", "addr", s.addr)
	return nil
}

// Stop stops accepting connections and waits for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	srv, cancel := s.srv, s.cancel
	s.running = false
	s.mu.Unlock()

	// In-flight handlers take s.mu, so drain them without holding it.
	cancel()
	err := srv.Shutdown(ctx)
	s.logger.Info("portal stopped")
	return err
}

// Reload applies cfg. A changed listen address restarts the listener.
func (s *Server) Reload(cfg *config.Config) (bool, error) {
	s.mu.Lock()
	restart := s.running && cfg.Portal.Listen != s.listen
	s.apply(cfg)
	s.mu.Unlock()

	if !restart {
		return false, nil
	}
	if err := s.Stop(context.Background()); err != nil {
		return true, err
	}
	return true, s.Start(context.Background())
}

// Status returns the current status of the service.
func (s *Server) Status() services.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return services.ServiceStatus{Name: s.Name(), Running: s.running, Addr: s.addr}
}

// Addr returns the bound address while running.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// portalURL is the absolute URL of a portal page. Redirects must be
// absolute: the client asked for some other host and was DNAT'd here.
func (s *Server) portalURL(path string) string {
	s.mu.RLock()
	ip, port := s.portalIP, s.port
	s.mu.RUnlock()

	host := ip
	if port != 80 {
		host = net.JoinHostPort(ip, strconv.Itoa(port))
	}
	return "http://" + host + path
}

func (s *Server) loginLimiter() *ratelimit.Limiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limiter
}

// clientIP returns the peer address of r.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
