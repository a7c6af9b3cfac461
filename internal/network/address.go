package network

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"
)

// NormalizeMAC parses a 48-bit link-layer address and returns it in
// lowercase colon form. All-zero addresses are rejected; the kernel
// reports them for incomplete neighbour entries.
func NormalizeMAC(mac string) (string, error) {
	if mac == "" {
		return "", fmt.Errorf("empty MAC address")
	}
	hw, err := net.ParseMAC(mac)
	if err != nil {
		return "", err
	}
	if len(hw) != 6 {
		return "", fmt.Errorf("not an EUI-48 address: %s", mac)
	}
	if bytes.Equal(hw, make(net.HardwareAddr, 6)) {
		return "", fmt.Errorf("zero MAC address")
	}
	return hw.String(), nil
}

// ParseIPv4 parses an IPv4 address, unmapping IPv4-in-IPv6 forms.
func ParseIPv4(ip string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return netip.Addr{}, err
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %s", ip)
	}
	return addr, nil
}
