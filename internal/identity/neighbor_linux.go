//go:build linux

package identity

import (
	"context"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// usableStates are neighbor states whose link-layer address can be trusted.
const usableStates = netlink.NUD_REACHABLE | netlink.NUD_STALE | netlink.NUD_DELAY |
	netlink.NUD_PROBE | netlink.NUD_PERMANENT

// NeighborResolver queries the kernel neighbor table over netlink.
type NeighborResolver struct {
	Interface string // optional; restricts the lookup to one link
}

func (r *NeighborResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	target := net.ParseIP(ip)
	if target == nil || target.To4() == nil {
		return "", false
	}

	index := 0
	if r.Interface != "" {
		link, err := netlink.LinkByName(r.Interface)
		if err != nil {
			return "", false
		}
		index = link.Attrs().Index
	}

	neighs, err := netlink.NeighList(index, unix.AF_INET)
	if err != nil {
		return "", false
	}
	for _, n := range neighs {
		if !n.IP.Equal(target) || n.State&usableStates == 0 {
			continue
		}
		if mac, ok := normalize(n.HardwareAddr.String()); ok {
			return mac, true
		}
	}
	return "", false
}
