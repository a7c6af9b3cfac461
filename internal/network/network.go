package network

import "strings"

// SystemController is an interface that abstracts system-level operations.
type SystemController interface {
	ReadSysctl(path string) (string, error)
	WriteSysctl(path, value string) error
	IsNotExist(err error) bool
}

// LinkStatus describes a host interface as seen by the kernel.
type LinkStatus struct {
	Name      string   `json:"name"`
	Exists    bool     `json:"exists"`
	AdminUp   bool     `json:"admin_up"`
	Carrier   bool     `json:"carrier"`
	Driver    string   `json:"driver,omitempty"`
	MAC       string   `json:"mac,omitempty"`
	MTU       int      `json:"mtu,omitempty"`
	IPv4Addrs []string `json:"ipv4_addrs,omitempty"`
}

// HasAddress reports whether ip (without prefix length) is assigned to the link.
func (s LinkStatus) HasAddress(ip string) bool {
	for _, a := range s.IPv4Addrs {
		addr, _, _ := strings.Cut(a, "/")
		if addr == ip {
			return true
		}
	}
	return false
}
