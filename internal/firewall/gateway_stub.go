//go:build !linux

package firewall

import (
	"context"
	"fmt"

	"grimm.is/netguard/internal/logging"
)

// NFTGateway is unavailable off Linux.
type NFTGateway struct{}

// Option configures an NFTGateway.
type Option func(*NFTGateway)

func WithLogger(*logging.Logger) Option { return func(*NFTGateway) {} }
func WithValidation(bool) Option         { return func(*NFTGateway) {} }

func NewNFTGateway(topo Topology, opts ...Option) (*NFTGateway, error) {
	return nil, fmt.Errorf("nftables gateway requires linux")
}

func (g *NFTGateway) Initialize(ctx context.Context) error { return errUnsupported }
func (g *NFTGateway) Authorize(ip, mac string) bool        { return false }
func (g *NFTGateway) Revoke(ip, mac string) bool           { return false }
func (g *NFTGateway) IsAuthorized(ip string) bool          { return false }
func (g *NFTGateway) Cleanup(ctx context.Context) error    { return errUnsupported }
