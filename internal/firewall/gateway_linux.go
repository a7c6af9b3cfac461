//go:build linux

package firewall

import (
	"bytes"
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/google/nftables"

	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/network"
)

// NFTGateway enforces admission with an nftables table.
type NFTGateway struct {
	topo     Topology
	logger   *logging.Logger
	runner   CommandRunner
	sys      network.SystemController
	flusher  ConntrackFlusher
	dial     func() (NFTablesConn, error)
	validate bool
	retry    RetryConfig

	mu          sync.Mutex
	conn        NFTablesConn
	clients     *nftables.Set
	revoked     *nftables.Set
	authorized  map[netip.Addr]string
	revokedMACs map[string]struct{}
	ready       bool
}

// Option configures an NFTGateway.
type Option func(*NFTGateway)

// WithLogger sets the gateway logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *NFTGateway) { g.logger = l }
}

// WithCommandRunner replaces the runner used for nft scripts.
func WithCommandRunner(r CommandRunner) Option {
	return func(g *NFTGateway) { g.runner = r }
}

// WithSystemController replaces the sysctl backend.
func WithSystemController(sys network.SystemController) Option {
	return func(g *NFTGateway) { g.sys = sys }
}

// WithConntrackFlusher replaces the conntrack backend.
func WithConntrackFlusher(f ConntrackFlusher) Option {
	return func(g *NFTGateway) { g.flusher = f }
}

// WithConn uses conn instead of dialing netlink.
func WithConn(conn NFTablesConn) Option {
	return func(g *NFTGateway) {
		g.dial = func() (NFTablesConn, error) { return conn, nil }
	}
}

// WithValidation checks the script with `nft -c` before applying it.
func WithValidation(enabled bool) Option {
	return func(g *NFTGateway) { g.validate = enabled }
}

// WithRetry overrides the retry policy for set updates.
func WithRetry(cfg RetryConfig) Option {
	return func(g *NFTGateway) { g.retry = cfg }
}

// NewNFTGateway creates a gateway for topo. Nothing touches the kernel
// until Initialize.
func NewNFTGateway(topo Topology, opts ...Option) (*NFTGateway, error) {
	if err := topo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid topology: %w", err)
	}
	g := &NFTGateway{
		topo:        topo,
		logger:      logging.WithComponent("firewall"),
		runner:      DefaultCommandRunner,
		sys:         network.DefaultSystemController,
		flusher:     NetlinkConntrackFlusher{},
		dial:        DialNFTables,
		retry:       BatchRetryConfig(),
		authorized:  make(map[netip.Addr]string),
		revokedMACs: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Initialize installs the baseline ruleset and enables forwarding.
func (g *NFTGateway) Initialize(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	sb, err := BuildBaselineScript(g.topo)
	if err != nil {
		return err
	}
	script := sb.Build()

	if g.validate {
		if err := g.runner.RunInput(script, "nft", "-c", "-f", "-"); err != nil {
			return fmt.Errorf("ruleset validation failed: %w", err)
		}
	}

	err = Retry(ctx, DefaultRetryConfig(), func() error {
		return g.runner.RunInput(script, "nft", "-f", "-")
	})
	if err != nil {
		return fmt.Errorf("failed to apply ruleset: %w", err)
	}

	if err := network.EnableForwarding(g.sys); err != nil {
		return err
	}

	if g.conn == nil {
		conn, err := g.dial()
		if err != nil {
			return err
		}
		g.conn = conn
	}
	if err := g.loadSets(); err != nil {
		return err
	}

	// The table was recreated, so any previous element state is gone.
	g.authorized = make(map[netip.Addr]string)
	g.revokedMACs = make(map[string]struct{})
	g.ready = true

	g.logger.Info("baseline ruleset applied", "summary", DescribeBaseline(g.topo))
	return nil
}

func (g *NFTGateway) loadSets() error {
	table := &nftables.Table{Name: g.topo.TableName, Family: nftables.TableFamilyINet}
	sets, err := g.conn.GetSets(table)
	if err != nil {
		return fmt.Errorf("failed to get sets: %w", err)
	}
	g.clients, g.revoked = nil, nil
	for _, s := range sets {
		switch s.Name {
		case ClientsSet:
			g.clients = s
		case RevokedSet:
			g.revoked = s
		}
	}
	if g.clients == nil || g.revoked == nil {
		return fmt.Errorf("sets %s/%s not found in table %s", ClientsSet, RevokedSet, g.topo.TableName)
	}
	return nil
}

// Authorize adds (ip, mac) to the clients set.
func (g *NFTGateway) Authorize(ip, mac string) bool {
	ok := g.authorize(ip, mac)
	metrics.Get().RecordFirewallOp("authorize", ok)
	return ok
}

func (g *NFTGateway) authorize(ip, mac string) bool {
	b, err := NewBinding(ip, mac)
	if err != nil {
		g.logger.Warn("authorize rejected", "ip", ip, "mac", mac, "error", err)
		return false
	}

	g.mu.Lock()
	if !g.ready {
		g.mu.Unlock()
		g.logger.Error("authorize failed", "binding", b.String(), "error", ErrNotInitialized)
		return false
	}

	prev, bound := g.authorized[b.IP]
	if bound && prev == b.MAC {
		g.mu.Unlock()
		return true
	}
	_, wasRevoked := g.revokedMACs[b.MAC]

	err = Retry(context.Background(), g.retry, func() error {
		if wasRevoked {
			if err := g.conn.SetDeleteElements(g.revoked, []nftables.SetElement{{Key: revokedKey(b.MAC)}}); err != nil {
				return err
			}
		}
		if bound {
			old := Binding{IP: b.IP, MAC: prev}
			if err := g.conn.SetDeleteElements(g.clients, []nftables.SetElement{{Key: clientKey(old)}}); err != nil {
				return err
			}
		}
		if err := g.conn.SetAddElements(g.clients, []nftables.SetElement{{Key: clientKey(b)}}); err != nil {
			return err
		}
		return g.conn.Flush()
	})
	if err == nil {
		delete(g.revokedMACs, b.MAC)
		g.authorized[b.IP] = b.MAC
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("authorize failed", "binding", b.String(), "error", err)
		return false
	}

	if bound {
		g.logger.Info("binding replaced", "ip", b.IP.String(), "old_mac", prev, "mac", b.MAC)
		// Flows the previous device opened must not ride on the new binding.
		g.flushConntrack(b.IP)
	}
	g.logger.Debug("authorized", "binding", b.String())
	return true
}

// Revoke removes the bypass for ip and blocks its MAC. The MAC is only
// added to the revoked set once no other authorized IP carries it.
func (g *NFTGateway) Revoke(ip, mac string) bool {
	ok := g.revoke(ip, mac)
	metrics.Get().RecordFirewallOp("revoke", ok)
	return ok
}

func (g *NFTGateway) revoke(ip, mac string) bool {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		g.logger.Warn("revoke rejected", "ip", ip, "error", err)
		return false
	}

	g.mu.Lock()
	bound, ok := g.authorized[addr]
	if !ok || !g.ready {
		g.mu.Unlock()
		return false
	}
	if mac != "" {
		if norm, err := network.NormalizeMAC(mac); err == nil && norm != bound {
			g.logger.Warn("revoke mac differs from binding", "ip", ip, "mac", norm, "bound", bound)
		}
	}
	b := Binding{IP: addr, MAC: bound}
	delete(g.authorized, addr)

	_, already := g.revokedMACs[b.MAC]
	block := !already && !g.macBoundLocked(b.MAC)

	err = Retry(context.Background(), g.retry, func() error {
		if block {
			if err := g.conn.SetAddElements(g.revoked, []nftables.SetElement{{Key: revokedKey(b.MAC)}}); err != nil {
				return err
			}
		}
		if err := g.conn.SetDeleteElements(g.clients, []nftables.SetElement{{Key: clientKey(b)}}); err != nil {
			return err
		}
		return g.conn.Flush()
	})
	if err == nil && block {
		g.revokedMACs[b.MAC] = struct{}{}
	}
	if err != nil && g.reconcileLocked(b) {
		g.authorized[addr] = b.MAC
	}
	g.mu.Unlock()

	if err != nil {
		g.logger.Error("revoke failed", "binding", b.String(), "error", err)
		return false
	}

	g.flushConntrack(addr)
	g.logger.Debug("revoked", "binding", b.String(), "mac_blocked", block)
	return true
}

// macBoundLocked reports whether any authorized IP still uses mac.
func (g *NFTGateway) macBoundLocked(mac string) bool {
	for _, m := range g.authorized {
		if m == mac {
			return true
		}
	}
	return false
}

// reconcileLocked reads the clients set back from the kernel and reports
// whether b is still installed.
func (g *NFTGateway) reconcileLocked(b Binding) bool {
	elems, err := g.conn.GetSetElements(g.clients)
	if err != nil {
		g.logger.Warn("clients set readback failed", "binding", b.String(), "error", err)
		return false
	}
	want := clientKey(b)
	for _, e := range elems {
		if bytes.Equal(e.Key, want) {
			g.logger.Warn("binding still installed after failed revoke", "binding", b.String())
			return true
		}
	}
	return false
}

func (g *NFTGateway) flushConntrack(addr netip.Addr) {
	n, err := g.flusher.FlushAddress(addr)
	if err != nil {
		g.logger.Warn("conntrack flush failed", "ip", addr.String(), "error", err)
		return
	}
	if n > 0 {
		metrics.Get().ConntrackFlushed.Add(float64(n))
		g.logger.Debug("conntrack flushed", "ip", addr.String(), "flows", n)
	}
}

// IsAuthorized reports whether ip has a bypass.
func (g *NFTGateway) IsAuthorized(ip string) bool {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.authorized[addr]
	return ok
}

// Cleanup deletes the gateway table. IP forwarding stays enabled.
func (g *NFTGateway) Cleanup(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	err := Retry(ctx, DefaultRetryConfig(), func() error {
		return g.runner.RunInput(BuildCleanupScript(g.topo.TableName), "nft", "-f", "-")
	})
	g.authorized = make(map[netip.Addr]string)
	g.revokedMACs = make(map[string]struct{})
	g.ready = false
	if err != nil {
		return fmt.Errorf("failed to remove table %s: %w", g.topo.TableName, err)
	}
	g.logger.Info("ruleset removed", "table", g.topo.TableName)
	return nil
}
