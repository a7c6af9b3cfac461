// Package identity maps IPv4 addresses to the link-layer addresses currently
// observed on the LAN.
//
// Lookups are advisory. A miss is a normal result and never an error: the
// caller decides whether "unknown" means "refuse" (login) or "no verdict"
// (spoof sweep).
package identity

import (
	"context"
	"sync"

	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/network"
)

// Resolver returns the MAC currently associated with ip.
// The returned MAC is lowercase colon form. ok is false when unknown.
type Resolver interface {
	Resolve(ctx context.Context, ip string) (mac string, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, ip string) (string, bool)

func (f ResolverFunc) Resolve(ctx context.Context, ip string) (string, bool) {
	return f(ctx, ip)
}

// Chain tries each resolver in order and returns the first hit.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, ip string) (string, bool) {
	for _, r := range c {
		if ctx.Err() != nil {
			return "", false
		}
		if mac, ok := r.Resolve(ctx, ip); ok {
			return mac, true
		}
	}
	return "", false
}

// Instrument counts lookups made through r under the given source label.
func Instrument(source string, r Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, ip string) (string, bool) {
		mac, ok := r.Resolve(ctx, ip)
		metrics.Get().RecordLookup(source, ok)
		return mac, ok
	})
}

// normalize returns mac in canonical form, rejecting the all-zero address
// the kernel reports for incomplete entries.
func normalize(mac string) (string, bool) {
	norm, err := network.NormalizeMAC(mac)
	if err != nil {
		return "", false
	}
	return norm, true
}

// StaticResolver is a map-backed resolver. Safe for concurrent use.
type StaticResolver struct {
	mu      sync.RWMutex
	entries map[string]string
	lookups int
}

// NewStaticResolver creates a resolver seeded with ip->mac entries.
func NewStaticResolver(entries map[string]string) *StaticResolver {
	s := &StaticResolver{entries: make(map[string]string)}
	for ip, mac := range entries {
		s.Set(ip, mac)
	}
	return s
}

func (s *StaticResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	mac, ok := s.entries[ip]
	return mac, ok
}

// Set maps ip to mac. Invalid MACs are stored as misses.
func (s *StaticResolver) Set(ip, mac string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm, ok := normalize(mac)
	if !ok {
		delete(s.entries, ip)
		return
	}
	s.entries[ip] = norm
}

// Delete removes ip.
func (s *StaticResolver) Delete(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ip)
}

// Lookups returns how many times Resolve was called.
func (s *StaticResolver) Lookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}
