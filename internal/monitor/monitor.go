// Package monitor runs the periodic integrity sweeps over the session table.
//
// Each tick performs two independent passes. The expiry pass ends sessions
// older than the configured timeout. The spoof pass re-resolves every
// session's IP and ends the session when a different MAC answers for it.
// A failed lookup is "no verdict" and never ends a session.
//
// Both passes act on a snapshot and end sessions through the same path a
// logout uses, so the monitor is just another client of the table.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"grimm.is/netguard/internal/clock"
	"grimm.is/netguard/internal/identity"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/session"
)

// DefaultInterval is the sweep period.
const DefaultInterval = 30 * time.Second

// lookupTimeout bounds a single MAC lookup during the spoof pass.
const lookupTimeout = 2 * time.Second

// ErrAlreadyRunning is returned by Start on a running monitor.
var ErrAlreadyRunning = errors.New("monitor already running")

// Table is the part of the session controller the monitor drives.
type Table interface {
	Snapshot() []session.Session
	Expired(now time.Time) []session.Session
	Evict(s session.Session, reason session.Reason) bool
}

// SweepResult counts the sessions one sweep ended.
type SweepResult struct {
	Expired int
	Spoofed int
}

// Monitor periodically sweeps a session table.
type Monitor struct {
	table      Table
	resolver   identity.Resolver
	clock      clock.Clock
	logger     *logging.Logger
	interval   time.Duration
	spoofCheck bool

	sweepMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	trigger chan struct{}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the sweep period.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithClock sets the time source used to judge expiry.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithSpoofCheck enables or disables the spoof pass.
func WithSpoofCheck(enabled bool) Option {
	return func(m *Monitor) { m.spoofCheck = enabled }
}

// New creates a stopped monitor.
func New(table Table, resolver identity.Resolver, opts ...Option) *Monitor {
	m := &Monitor{
		table:      table,
		resolver:   resolver,
		clock:      clock.Default,
		logger:     logging.WithComponent("monitor"),
		interval:   DefaultInterval,
		spoofCheck: true,
		trigger:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.clock = clock.OrDefault(m.clock)
	return m
}

// Start launches the sweep loop. It returns immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(ctx, m.done)

	m.logger.Info("integrity monitor started", "interval", m.interval, "spoof_check", m.spoofCheck)
	return nil
}

// Stop cancels the loop and waits for an in-progress sweep to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("integrity monitor stopped")
}

// Trigger requests an immediate sweep from the running loop. Requests made
// while one is pending are coalesced.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

func (m *Monitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-m.trigger:
		}
		m.Sweep(ctx)
	}
}

// Sweep runs both passes once and reports what it ended.
func (m *Monitor) Sweep(ctx context.Context) SweepResult {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	start := time.Now()
	var res SweepResult

	for _, s := range m.table.Expired(m.clock.Now()) {
		if ctx.Err() != nil {
			return res
		}
		if m.table.Evict(s, session.ReasonExpired) {
			res.Expired++
			m.logger.Info("session expired", "ip", s.IP, "user", s.Username, "age", m.clock.Since(s.CreatedAt).Round(time.Second))
		}
	}

	if m.spoofCheck {
		res.Spoofed = m.spoofPass(ctx)
	}

	metrics.Get().RecordSweep(time.Since(start))
	if res.Expired > 0 || res.Spoofed > 0 {
		m.logger.Debug("sweep complete", "expired", res.Expired, "spoofed", res.Spoofed)
	}
	return res
}

func (m *Monitor) spoofPass(ctx context.Context) int {
	n := 0
	for _, s := range m.table.Snapshot() {
		if ctx.Err() != nil {
			return n
		}
		if s.MAC == "" {
			continue
		}

		lctx, cancel := context.WithTimeout(ctx, lookupTimeout)
		current, ok := m.resolver.Resolve(lctx, s.IP)
		cancel()
		if !ok || current == "" || current == s.MAC {
			continue
		}

		m.logger.Warn("spoofing detected", "ip", s.IP, "user", s.Username, "mac", s.MAC, "observed", current)
		if m.table.Evict(s, session.ReasonSpoofed) {
			n++
		}
	}
	return n
}
