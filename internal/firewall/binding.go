package firewall

import (
	"fmt"
	"net/netip"

	"grimm.is/netguard/internal/network"
)

// Binding is a normalized (IPv4, MAC) pair.
type Binding struct {
	IP  netip.Addr
	MAC string // lowercase colon form
}

// NewBinding validates and normalizes ip and mac.
func NewBinding(ip, mac string) (Binding, error) {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return Binding{}, fmt.Errorf("invalid address %q: %w", ip, err)
	}
	if mac == "" {
		return Binding{}, ErrMissingMAC
	}
	norm, err := network.NormalizeMAC(mac)
	if err != nil {
		return Binding{}, fmt.Errorf("invalid MAC %q: %w", mac, err)
	}
	return Binding{IP: addr, MAC: norm}, nil
}

func (b Binding) String() string {
	return b.IP.String() + "/" + b.MAC
}
