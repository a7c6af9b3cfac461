// Package dns implements the captive DNS responder. Unauthorized clients
// have their queries redirected here; every A question is answered with the
// portal address so any hostname lands on the login page.
package dns

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/miekg/dns"

	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/services"
)

// Service answers DNS queries with the portal address.
type Service struct {
	logger *logging.Logger

	mu       sync.RWMutex
	portalIP net.IP
	ttl      uint32
	listen   string
	servers  []*dns.Server
	addr     string
	running  bool
}

// NewService creates a stopped responder from cfg.
func NewService(cfg *config.Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.WithComponent("dns")
	}
	s := &Service{logger: logger}
	s.apply(cfg)
	return s
}

func (s *Service) apply(cfg *config.Config) {
	s.portalIP = net.ParseIP(cfg.Gateway.PortalIP).To4()
	s.ttl = uint32(cfg.DNS.TTL)
	s.listen = cfg.DNS.Listen
}

// Name returns the service name.
func (s *Service) Name() string {
	return "captive-dns"
}

// Start binds UDP and TCP on the configured address and serves in the
// background.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	pc, err := net.ListenPacket("udp", s.listen)
	if err != nil {
		return fmt.Errorf("dns listen udp %s: %w", s.listen, err)
	}
	// Bind TCP on the port UDP actually got, which matters when listen uses :0.
	ln, err := net.Listen("tcp", pc.LocalAddr().String())
	if err != nil {
		pc.Close()
		return fmt.Errorf("dns listen tcp %s: %w", s.listen, err)
	}

	var started sync.WaitGroup
	started.Add(2)
	s.servers = []*dns.Server{
		{PacketConn: pc, Handler: s, NotifyStartedFunc: started.Done},
		{Listener: ln, Handler: s, NotifyStartedFunc: started.Done},
	}
	for _, srv := range s.servers {
		go func(srv *dns.Server) {
			if err := srv.ActivateAndServe(); err != nil {
				s.logger.Error("dns server error", "error", err)
			}
		}(srv)
	}
	// Shutdown fails on a server that has not started yet.
	started.Wait()

	s.addr = pc.LocalAddr().String()
	s.running = true
	s.logger.Info("captive dns started", "addr", s.addr, "answer", s.portalIP.String())
	return nil
}

// Stop shuts down both listeners.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	var first error
	for _, srv := range s.servers {
		if err := srv.ShutdownContext(ctx); err != nil && first == nil {
			first = err
		}
	}
	s.servers = nil
	s.running = false
	s.logger.Info("captive dns stopped")
	return first
}

// Reload applies cfg. A changed listen address restarts the listeners.
func (s *Service) Reload(cfg *config.Config) (bool, error) {
	s.mu.Lock()
	restart := s.running && cfg.DNS.Listen != s.listen
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
func (s *Service) Status() services.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return services.ServiceStatus{
		Name:    s.Name(),
		Running: s.running,
		Addr:    s.addr,
	}
}

// Addr returns the bound UDP address while running.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// ServeDNS implements dns.Handler.
func (s *Service) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(req)
	m.Authoritative = true
	m.RecursionAvailable = true

	if req.Opcode != dns.OpcodeQuery {
		m.SetRcode(req, dns.RcodeNotImplemented)
		w.WriteMsg(m)
		return
	}

	s.mu.RLock()
	ip, ttl := s.portalIP, s.ttl
	s.mu.RUnlock()

	for _, q := range req.Question {
		metrics.Get().DNSQueries.WithLabelValues(dns.TypeToString[q.Qtype]).Inc()
		if q.Qtype != dns.TypeA || q.Qclass != dns.ClassINET || ip == nil {
			// AAAA and everything else get an empty NOERROR so clients
			// fall back to the A answer.
			continue
		}
		m.Answer = append(m.Answer, &dns.A{
			Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
			A:   ip,
		})
	}

	if err := w.WriteMsg(m); err != nil {
		s.logger.Debug("dns write failed", "remote", w.RemoteAddr().String(), "error", err)
	}
}
