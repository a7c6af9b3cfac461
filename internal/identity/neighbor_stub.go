//go:build !linux

package identity

import "context"

// NeighborResolver is a stub for non-Linux platforms.
type NeighborResolver struct {
	Interface string
}

func (r *NeighborResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	return "", false
}
