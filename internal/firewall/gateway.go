package firewall

import (
	"context"
	"errors"
	"fmt"
)

// Gateway is the packet-filter boundary of admission control.
//
// Authorize and Revoke report success as a bool. Failures are logged by the
// implementation and never unwind into the caller.
type Gateway interface {
	// Initialize installs the baseline policy. It is idempotent and replaces
	// any previous ruleset owned by the gateway.
	Initialize(ctx context.Context) error

	// Authorize lets (ip, mac) forward to the WAN. An empty or malformed MAC
	// always fails.
	Authorize(ip, mac string) bool

	// Revoke removes the bypass for ip. It returns false if ip was not
	// authorized. An empty mac revokes whatever MAC is bound to ip.
	Revoke(ip, mac string) bool

	// IsAuthorized reports whether ip currently has a bypass.
	IsAuthorized(ip string) bool

	// Cleanup removes all rules and restores default-allow forwarding.
	Cleanup(ctx context.Context) error
}

var (
	// ErrNotInitialized is returned when the baseline was never installed.
	ErrNotInitialized = errors.New("firewall not initialized")

	// ErrMissingMAC is returned when a binding has no link-layer address.
	ErrMissingMAC = errors.New("binding requires a MAC address")
)

// Topology describes the LAN the gateway enforces.
type Topology struct {
	LANInterface string
	WANInterface string
	PortalIP     string
	PortalPort   int
	DNSPort      int // captive DNS port, 0 disables the DNS redirect
	UpstreamDNS  string
	TableName    string
}

// Validate checks the fields the ruleset depends on.
func (t Topology) Validate() error {
	if t.LANInterface == "" || t.WANInterface == "" {
		return fmt.Errorf("lan and wan interfaces are required")
	}
	if !isValidIdentifier(t.TableName) {
		return fmt.Errorf("invalid table name %q", t.TableName)
	}
	if t.PortalPort <= 0 || t.PortalPort > 65535 {
		return fmt.Errorf("invalid portal port %d", t.PortalPort)
	}
	if t.DNSPort < 0 || t.DNSPort > 65535 {
		return fmt.Errorf("invalid dns port %d", t.DNSPort)
	}
	if t.PortalIP == "" || t.UpstreamDNS == "" {
		return fmt.Errorf("portal ip and upstream dns are required")
	}
	return nil
}
