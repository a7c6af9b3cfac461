package dns

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"

	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/services"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Gateway.PortalIP = "192.168.10.1"
	cfg.DNS.Listen = "127.0.0.1:0"
	cfg.DNS.TTL = 60
	return cfg
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(testConfig(), logging.New(logging.DefaultConfig()))
}

type MockResponseWriter struct {
	msg *dns.Msg
}

func (m *MockResponseWriter) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("192.168.10.1"), Port: 53}
}
func (m *MockResponseWriter) RemoteAddr() net.Addr {
	return &net.UDPAddr{IP: net.ParseIP("192.168.10.50"), Port: 12345}
}
func (m *MockResponseWriter) WriteMsg(msg *dns.Msg) error {
	m.msg = msg
	return nil
}
func (m *MockResponseWriter) Write([]byte) (int, error) { return 0, nil }
func (m *MockResponseWriter) Close() error              { return nil }
func (m *MockResponseWriter) TsigStatus() error         { return nil }
func (m *MockResponseWriter) TsigTimersOnly(bool)       {}
func (m *MockResponseWriter) Hijack()                   {}

func TestServeDNS_A(t *testing.T) {
	s := newTestService(t)

	req := new(dns.Msg)
	req.SetQuestion("connectivitycheck.gstatic.com.", dns.TypeA)

	w := &MockResponseWriter{}
	s.ServeDNS(w, req)

	if w.msg == nil {
		t.Fatal("No response written")
	}
	if w.msg.Rcode != dns.RcodeSuccess {
		t.Errorf("Expected Success (0), got %d", w.msg.Rcode)
	}
	if w.msg.Id != req.Id {
		t.Errorf("Id = %d, want %d", w.msg.Id, req.Id)
	}
	if len(w.msg.Answer) != 1 {
		t.Fatalf("Expected 1 answer, got %d", len(w.msg.Answer))
	}
	a, ok := w.msg.Answer[0].(*dns.A)
	if !ok {
		t.Fatal("Expected A record answer")
	}
	if !a.A.Equal(net.ParseIP("192.168.10.1")) {
		t.Errorf("Expected portal IP, got %v", a.A)
	}
	if a.Hdr.Ttl != 60 {
		t.Errorf("TTL = %d, want 60", a.Hdr.Ttl)
	}
	if a.Hdr.Name != "connectivitycheck.gstatic.com." {
		t.Errorf("Name = %q", a.Hdr.Name)
	}
}

func TestServeDNS_AAAAEmpty(t *testing.T) {
	s := newTestService(t)

	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeAAAA)

	w := &MockResponseWriter{}
	s.ServeDNS(w, req)

	if w.msg.Rcode != dns.RcodeSuccess {
		t.Errorf("Expected NOERROR, got %d", w.msg.Rcode)
	}
	if len(w.msg.Answer) != 0 {
		t.Errorf("Expected no answers, got %d", len(w.msg.Answer))
	}
}

func TestServeDNS_NotQuery(t *testing.T) {
	s := newTestService(t)

	req := new(dns.Msg)
	req.SetUpdate("example.com.")

	w := &MockResponseWriter{}
	s.ServeDNS(w, req)

	if w.msg.Rcode != dns.RcodeNotImplemented {
		t.Errorf("Expected NOTIMP, got %d", w.msg.Rcode)
	}
}

func TestReload_UpdatesAnswer(t *testing.T) {
	s := newTestService(t)
	cfg := testConfig()
	cfg.Gateway.PortalIP = "10.9.9.1"
	cfg.DNS.TTL = 5

	restarted, err := s.Reload(cfg)
	if err != nil || restarted {
		t.Fatalf("Reload = %v, %v; want false, nil", restarted, err)
	}

	req := new(dns.Msg)
	req.SetQuestion("a.example.", dns.TypeA)
	w := &MockResponseWriter{}
	s.ServeDNS(w, req)

	a := w.msg.Answer[0].(*dns.A)
	if !a.A.Equal(net.ParseIP("10.9.9.1")) || a.Hdr.Ttl != 5 {
		t.Errorf("unexpected answer %v", a)
	}
}

func TestStartStop_Exchange(t *testing.T) {
	s := newTestService(t)
	var _ services.Service = s

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop(context.Background())

	if !s.Status().Running {
		t.Fatal("service should be running")
	}

	req := new(dns.Msg)
	req.SetQuestion("anything.test.", dns.TypeA)

	c := &dns.Client{Timeout: 2 * time.Second}
	var resp *dns.Msg
	var err error
	// The server goroutine may not be serving yet.
	for i := 0; i < 20; i++ {
		resp, _, err = c.Exchange(req, s.Addr())
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if len(resp.Answer) != 1 {
		t.Fatalf("Expected 1 answer, got %d", len(resp.Answer))
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if s.Status().Running {
		t.Error("service should be stopped")
	}
}
