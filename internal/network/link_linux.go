//go:build linux

package network

import (
	"errors"
	"fmt"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// InspectLink reports the kernel's view of the named interface.
// A missing interface is not an error; Exists is false.
func InspectLink(name string) (LinkStatus, error) {
	status := LinkStatus{Name: name}

	link, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return status, nil
		}
		return status, fmt.Errorf("failed to look up link %s: %w", name, err)
	}

	attrs := link.Attrs()
	status.Exists = true
	status.MAC = attrs.HardwareAddr.String()
	status.MTU = attrs.MTU
	status.AdminUp = attrs.Flags&unix.IFF_UP != 0
	status.Carrier = attrs.OperState == netlink.OperUp

	// ethtool knows the physical carrier and driver better than OperState
	// for real NICs; virtual links simply fail here and keep the netlink view.
	if h, err := ethtool.NewEthtool(); err == nil {
		defer h.Close()
		if state, err := h.LinkState(name); err == nil {
			status.Carrier = state == 1
		}
		if driver, err := h.DriverName(name); err == nil {
			status.Driver = driver
		}
	}

	addrs, err := netlink.AddrList(link, unix.AF_INET)
	if err == nil {
		for _, addr := range addrs {
			status.IPv4Addrs = append(status.IPv4Addrs, addr.IPNet.String())
		}
	}

	return status, nil
}
