package identity

import "grimm.is/netguard/internal/config"

// NewFromConfig builds the production resolver: netlink neighbors, then the
// procfs ARP table, optionally wrapped in an ICMP probe on miss.
func NewFromConfig(cfg *config.IdentityConfig, lanInterface string) Resolver {
	var r Resolver = Chain{
		Instrument("neighbor", &NeighborResolver{Interface: lanInterface}),
		Instrument("arp", &ARPTableResolver{Path: cfg.ARPTable, Interface: lanInterface}),
	}
	if cfg.ProbeEnabled() {
		r = &ProbingResolver{Inner: r, Timeout: cfg.ProbeTimeoutDuration()}
	}
	return r
}
