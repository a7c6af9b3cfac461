package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/netguard/internal/clock"
	"grimm.is/netguard/internal/firewall"
	"grimm.is/netguard/internal/identity"
	"grimm.is/netguard/internal/logging"
	"grimm.is/netguard/internal/metrics"
	"grimm.is/netguard/internal/network"
)

// DefaultTimeout is the session lifetime when none is configured.
const DefaultTimeout = time.Hour

// Controller owns the session table. It is the only writer of the table and
// delegates every admit or deny decision to the firewall gateway.
type Controller struct {
	gateway  firewall.Gateway
	resolver identity.Resolver
	clock    clock.Clock
	logger   *logging.Logger
	locks    *ipLocks

	mu       sync.RWMutex
	sessions map[string]Session
	timeout  time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithTimeout sets the session lifetime.
func WithTimeout(d time.Duration) Option {
	return func(ctl *Controller) { ctl.timeout = d }
}

// NewController creates an empty session table bound to gw and resolver.
func NewController(gw firewall.Gateway, resolver identity.Resolver, opts ...Option) *Controller {
	c := &Controller{
		gateway:  gw,
		resolver: resolver,
		clock:    clock.Default,
		logger:   logging.WithComponent("session"),
		locks:    newIPLocks(),
		sessions: make(map[string]Session),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.clock = clock.OrDefault(c.clock)
	return c
}

// key canonicalizes ip so "10.0.0.5" and "::ffff:10.0.0.5" share a row.
func key(ip string) (string, bool) {
	addr, err := network.ParseIPv4(ip)
	if err != nil {
		return "", false
	}
	return addr.String(), true
}

// CreateSession admits ip for username. The device's MAC is resolved and
// handed to the gateway; the row is written only if the gateway accepts.
// A second login from the same IP replaces the row and rebinds the MAC.
func (c *Controller) CreateSession(ctx context.Context, ip, username string) bool {
	k, ok := key(ip)
	if !ok {
		c.reject(ip, username, rejectInvalidIP)
		return false
	}

	unlock := c.locks.lock(k)
	defer unlock()

	mac, ok := c.resolver.Resolve(ctx, k)
	if !ok || mac == "" {
		c.reject(k, username, rejectNoMAC)
		return false
	}
	mac, err := network.NormalizeMAC(mac)
	if err != nil {
		c.reject(k, username, rejectNoMAC)
		return false
	}

	if !c.gateway.Authorize(k, mac) {
		c.reject(k, username, rejectFirewall)
		return false
	}

	s := Session{
		ID:        uuid.NewString(),
		IP:        k,
		Username:  username,
		MAC:       mac,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	prev, replaced := c.sessions[k]
	c.sessions[k] = s
	n := len(c.sessions)
	c.mu.Unlock()

	m := metrics.Get()
	m.SessionsCreated.Inc()
	m.SessionsActive.Set(float64(n))

	if replaced {
		c.logger.Info("session replaced", "ip", k, "user", username, "previous_user", prev.Username,
			"mac", mac, "previous_mac", prev.MAC)
	}
	c.logger.Audit("session.create", k, map[string]any{"user": username, "mac": mac, "session": s.ID})
	return true
}

func (c *Controller) reject(ip, username, reason string) {
	metrics.Get().SessionsRejected.WithLabelValues(reason).Inc()
	c.logger.Warn("session refused", "ip", ip, "user", username, "reason", reason)
}

// EndSession ends the session for ip as a logout.
func (c *Controller) EndSession(ip string) bool {
	return c.EndSessionWithReason(ip, ReasonLogout)
}

// EndSessionWithReason removes the row for ip and revokes the MAC that was
// stored with it. It returns false, with no side effects, if ip has no
// session. A failed revoke is logged and does not change the result.
func (c *Controller) EndSessionWithReason(ip string, reason Reason) bool {
	return c.end(ip, reason, nil)
}

// Evict ends s only if it is still the live session for its IP. Callers
// acting on an earlier snapshot use it so a fresh login is not torn down.
func (c *Controller) Evict(s Session, reason Reason) bool {
	return c.end(s.IP, reason, func(live Session) bool { return live.ID == s.ID })
}

func (c *Controller) end(ip string, reason Reason, match func(Session) bool) bool {
	k, ok := key(ip)
	if !ok {
		return false
	}

	unlock := c.locks.lock(k)
	defer unlock()

	c.mu.Lock()
	s, ok := c.sessions[k]
	if ok && match != nil && !match(s) {
		ok = false
	}
	if ok {
		delete(c.sessions, k)
	}
	n := len(c.sessions)
	c.mu.Unlock()

	if !ok {
		return false
	}

	m := metrics.Get()
	m.SessionsEnded.WithLabelValues(string(reason)).Inc()
	m.SessionsActive.Set(float64(n))

	if !c.gateway.Revoke(k, s.MAC) {
		c.logger.Error("revoke failed", "ip", k, "mac", s.MAC, "reason", reason,
			"bypass_installed", c.gateway.IsAuthorized(k))
	}
	c.logger.Audit("session.end", k, map[string]any{"user": s.Username, "mac": s.MAC, "reason": string(reason), "session": s.ID})
	return true
}

// IsAuthenticated reports whether ip has a session.
func (c *Controller) IsAuthenticated(ip string) bool {
	_, ok := c.GetSession(ip)
	return ok
}

// GetSession returns a copy of the session for ip.
func (c *Controller) GetSession(ip string) (Session, bool) {
	k, ok := key(ip)
	if !ok {
		return Session{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[k]
	return s, ok
}

// Snapshot returns every session ordered by creation time.
func (c *Controller) Snapshot() []Session {
	c.mu.RLock()
	out := make([]Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].IP < out[j].IP
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of sessions.
func (c *Controller) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Timeout returns the session lifetime.
func (c *Controller) Timeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeout
}

// SetTimeout changes the session lifetime. Existing sessions are judged
// against the new value on the next sweep.
func (c *Controller) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Remaining returns how long s has left, floored at zero.
func (c *Controller) Remaining(s Session) time.Duration {
	left := c.clock.Until(s.ExpiresAt(c.Timeout()))
	if left < 0 {
		return 0
	}
	return left
}

// Expired returns the sessions older than the timeout at now.
func (c *Controller) Expired(now time.Time) []Session {
	timeout := c.Timeout()
	var out []Session
	for _, s := range c.Snapshot() {
		if s.Age(now) > timeout {
			out = append(out, s)
		}
	}
	return out
}

// Now returns the controller's current time.
func (c *Controller) Now() time.Time {
	return c.clock.Now()
}

// EndAll ends every session with ReasonShutdown and returns how many ended.
func (c *Controller) EndAll() int {
	n := 0
	for _, s := range c.Snapshot() {
		if c.Evict(s, ReasonShutdown) {
			n++
		}
	}
	if n > 0 {
		c.logger.Info("sessions revoked", "count", n)
	}
	return n
}
