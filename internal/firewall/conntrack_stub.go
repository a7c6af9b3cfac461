//go:build !linux

package firewall

import (
	"fmt"
	"net/netip"
)

// NetlinkConntrackFlusher is a stub for non-Linux platforms.
type NetlinkConntrackFlusher struct{}

func (NetlinkConntrackFlusher) FlushAddress(addr netip.Addr) (int, error) {
	return 0, fmt.Errorf("conntrack not supported on this platform")
}
