//go:build linux

package firewall

import (
	"fmt"
	"net/netip"

	"github.com/ti-mo/conntrack"
)

// NetlinkConntrackFlusher deletes conntrack flows through the netlink API.
type NetlinkConntrackFlusher struct{}

// FlushAddress removes every flow whose original tuple has addr as source
// or destination. It returns the number of flows deleted.
func (NetlinkConntrackFlusher) FlushAddress(addr netip.Addr) (int, error) {
	conn, err := conntrack.Dial(nil)
	if err != nil {
		return 0, fmt.Errorf("conntrack dial failed: %w", err)
	}
	defer conn.Close()

	flows, err := conn.Dump(nil)
	if err != nil {
		return 0, fmt.Errorf("conntrack dump failed: %w", err)
	}

	deleted := 0
	var firstErr error
	for _, f := range flows {
		if f.TupleOrig.IP.SourceAddress != addr && f.TupleOrig.IP.DestinationAddress != addr {
			continue
		}
		if err := conn.Delete(f); err != nil {
			// Flows may expire between dump and delete.
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}
	if firstErr != nil && deleted == 0 {
		return 0, fmt.Errorf("conntrack delete failed: %w", firstErr)
	}
	return deleted, nil
}
