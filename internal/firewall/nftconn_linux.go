//go:build linux

package firewall

import (
	"fmt"
	"net"

	"github.com/google/nftables"
)

// NFTablesConn abstracts the nftables.Conn operations the gateway uses.
// Only set element changes go through netlink; the ruleset itself is
// applied as a script.
type NFTablesConn interface {
	GetSets(t *nftables.Table) ([]*nftables.Set, error)
	GetSetElements(s *nftables.Set) ([]nftables.SetElement, error)
	SetAddElements(s *nftables.Set, vals []nftables.SetElement) error
	SetDeleteElements(s *nftables.Set, vals []nftables.SetElement) error
	Flush() error
}

// RealNFTablesConn wraps the actual nftables.Conn.
type RealNFTablesConn struct {
	conn *nftables.Conn
}

// NewRealNFTablesConn creates a new RealNFTablesConn wrapping an nftables.Conn.
func NewRealNFTablesConn(conn *nftables.Conn) *RealNFTablesConn {
	return &RealNFTablesConn{conn: conn}
}

// DialNFTables opens a netlink connection to nftables.
func DialNFTables() (NFTablesConn, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("failed to open nftables connection: %w", err)
	}
	return NewRealNFTablesConn(conn), nil
}

func (r *RealNFTablesConn) GetSets(t *nftables.Table) ([]*nftables.Set, error) {
	return r.conn.GetSets(t)
}

func (r *RealNFTablesConn) GetSetElements(s *nftables.Set) ([]nftables.SetElement, error) {
	return r.conn.GetSetElements(s)
}

func (r *RealNFTablesConn) SetAddElements(s *nftables.Set, vals []nftables.SetElement) error {
	return r.conn.SetAddElements(s, vals)
}

func (r *RealNFTablesConn) SetDeleteElements(s *nftables.Set, vals []nftables.SetElement) error {
	return r.conn.SetDeleteElements(s, vals)
}

func (r *RealNFTablesConn) Flush() error {
	return r.conn.Flush()
}

// clientKey encodes a binding as an "ipv4_addr . ether_addr" set key.
// Concatenated fields are padded to 32-bit boundaries, so the MAC takes
// eight bytes.
func clientKey(b Binding) []byte {
	key := make([]byte, 12)
	ip := b.IP.As4()
	copy(key[0:4], ip[:])
	copy(key[4:10], macBytes(b.MAC))
	return key
}

// revokedKey encodes a MAC as an "ether_addr" set key.
func revokedKey(mac string) []byte {
	return macBytes(mac)
}

func macBytes(mac string) []byte {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return make([]byte, 6)
	}
	return []byte(hw)
}
