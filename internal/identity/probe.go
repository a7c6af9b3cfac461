package identity

import (
	"context"
	"fmt"
	"os"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// DefaultProbeTimeout bounds the ICMP probe sent on a cache miss.
const DefaultProbeTimeout = 500 * time.Millisecond

// ProbingResolver wraps a table-backed resolver. On a miss it pings the
// address once, which makes the kernel populate the neighbor entry, and
// retries the lookup.
type ProbingResolver struct {
	Inner   Resolver
	Timeout time.Duration

	// Ping defaults to an ICMP echo via pro-bing.
	Ping func(ctx context.Context, ip string, timeout time.Duration) error
}

func (r *ProbingResolver) Resolve(ctx context.Context, ip string) (string, bool) {
	if mac, ok := r.Inner.Resolve(ctx, ip); ok {
		return mac, true
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ping := r.Ping
	if ping == nil {
		ping = icmpProbe
	}

	// The reply itself does not matter; the ARP exchange does.
	_ = ping(ctx, ip, timeout)
	if ctx.Err() != nil {
		return "", false
	}
	return r.Inner.Resolve(ctx, ip)
}

func icmpProbe(ctx context.Context, ip string, timeout time.Duration) error {
	pinger, err := probing.NewPinger(ip)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(os.Geteuid() == 0)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pinger.RunWithContext(ctx); err != nil {
		return err
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("packet loss")
	}
	return nil
}
