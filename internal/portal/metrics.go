package portal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/services"
)

// MetricsServer exposes Prometheus metrics on an operator-only address.
// It is kept off the portal listener so LAN clients cannot scrape it.
type MetricsServer struct {
	listen string
	logger *logging.Logger

	mu      sync.Mutex
	srv     *http.Server
	addr    string
	running bool
}

// NewMetricsServer creates a stopped metrics endpoint bound to listen.
func NewMetricsServer(listen string, logger *logging.Logger) *MetricsServer {
	if logger == nil {
		logger = logging.WithComponent("metrics")
	}
	return &MetricsServer{listen: listen, logger: logger}
}

func (m *MetricsServer) Name() string { return "metrics" }

func (m *MetricsServer) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	ln, err := net.Listen("tcp", m.listen)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	cfg := DefaultServerConfig()
	m.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	srv := m.srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	m.addr = ln.Addr().String()
	m.running = true
	m.logger.Info("metrics endpoint started", "addr", m.addr)
	return nil
}

func (m *MetricsServer) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	return m.srv.Shutdown(ctx)
}

func (m *MetricsServer) Status() services.ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return services.ServiceStatus{Name: m.Name(), Running: m.running, Addr: m.addr}
}

// Reload is a no-op; the metrics address is fixed for the process lifetime.
func (m *MetricsServer) Reload(*config.Config) (bool, error) { return false, nil }

// Addr returns the bound address while running.
func (m *MetricsServer) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}
