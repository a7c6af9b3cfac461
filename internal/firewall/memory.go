package firewall

import (
	"context"
	"net/netip"
	"sync"

	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/network"
)

// Call is one recorded gateway operation.
type Call struct {
	Op     string // "initialize", "authorize", "revoke", "cleanup"
	IP     string
	MAC    string
	Result bool
}

// MemoryGateway keeps admission state in memory. It applies the same
// binding rules as NFTGateway without touching the kernel.
type MemoryGateway struct {
	logger *logging.Logger

	mu          sync.Mutex
	ready       bool
	authorized  map[netip.Addr]string
	revokedMACs map[string]struct{}
	calls       []Call

	FailInitialize error
	FailAuthorize  bool
	FailRevoke     bool
}

// NewMemoryGateway creates an uninitialized in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		logger:      logging.WithComponent("firewall"),
		authorized:  make(map[netip.Addr]string),
		revokedMACs: make(map[string]struct{}),
	}
}

func (g *MemoryGateway) record(op, ip, mac string, ok bool) {
	g.calls = append(g.calls, Call{Op: op, IP: ip, MAC: mac, Result: ok})
}

func (g *MemoryGateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.FailInitialize; err != nil {
		g.record("initialize", "", "", false)
		return err
	}
	g.authorized = make(map[netip.Addr]string)
	g.revokedMACs = make(map[string]struct{})
	g.ready = true
	g.record("initialize", "", "", true)
	return nil
}

func (g *MemoryGateway) Authorize(ip, mac string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.authorize(ip, mac)
	g.record("authorize", ip, mac, ok)
	metrics.Get().RecordFirewallOp("authorize", ok)
	return ok
}

func (g *MemoryGateway) authorize(ip, mac string) bool {
	b, err := NewBinding(ip, mac)
	if err != nil {
		g.logger.Warn("authorize rejected", "ip", ip, "mac", mac, "error", err)
		return false
	}
	if !g.ready || g.FailAuthorize {
		return false
	}
	if prev, ok := g.authorized[b.IP]; ok && prev == b.MAC {
		return true
	}
	delete(g.revokedMACs, b.MAC)
	g.authorized[b.IP] = b.MAC
	return true
}

func (g *MemoryGateway) Revoke(ip, mac string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	ok := g.revoke(ip)
	g.record("revoke", ip, mac, ok)
	metrics.Get().RecordFirewallOp("revoke", ok)
	return ok
}

func (g *MemoryGateway) revoke(ip string) bool {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return false
	}
	bound, ok := g.authorized[addr]
	if !ok {
		return false
	}
	// A failed batch leaves the kernel set untouched, so the binding stays.
	if g.FailRevoke {
		return false
	}
	delete(g.authorized, addr)
	for _, m := range g.authorized {
		if m == bound {
			return true
		}
	}
	g.revokedMACs[bound] = struct{}{}
	return true
}

func (g *MemoryGateway) IsAuthorized(ip string) bool {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.authorized[addr]
	return ok
}

func (g *MemoryGateway) Cleanup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authorized = make(map[netip.Addr]string)
	g.revokedMACs = make(map[string]struct{})
	g.ready = false
	g.record("cleanup", "", "", true)
	return nil
}

// BoundMAC returns the MAC authorized for ip.
func (g *MemoryGateway) BoundMAC(ip string) (string, bool) {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return "", false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	mac, ok := g.authorized[addr]
	return mac, ok
}

// IsRevoked reports whether mac is in the revoked set.
func (g *MemoryGateway) IsRevoked(mac string) bool {
	norm, err := network.NormalizeMAC(mac)
	if err != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.revokedMACs[norm]
	return ok
}

// Calls returns a copy of the recorded operations.
func (g *MemoryGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallsFor returns the recorded operations named op.
func (g *MemoryGateway) CallsFor(op string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// SetFailAuthorize toggles injected authorize failures.
func (g *MemoryGateway) SetFailAuthorize(fail bool) {
	g.mu.Lock()
	g.FailAuthorize = fail
	g.mu.Unlock()
}

// SetFailRevoke toggles injected revoke failures.
func (g *MemoryGateway) SetFailRevoke(fail bool) {
	g.mu.Lock()
	g.FailRevoke = fail
	g.mu.Unlock()
}

// Authorized returns the number of bound IPs.
func (g *MemoryGateway) Authorized() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.authorized)
}
