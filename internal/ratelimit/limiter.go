// Package ratelimit throttles portal login attempts per client.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"grimm.is/netguard/internal/clock"
)

// Limiter manages fixed-window rate limiting for multiple keys.
type Limiter struct {
	limit    int
	interval time.Duration
	clock    clock.Clock

	limiters map[string]*bucket
	mu       sync.Mutex
}

// bucket holds the tokens left in the current window.
type bucket struct {
	tokens   int
	lastFill time.Time
}

// NewLimiter allows limit requests per key within each interval.
// A nil clock uses the real clock.
func NewLimiter(limit int, interval time.Duration, c clock.Clock) *Limiter {
	return &Limiter{
		limit:    limit,
		interval: interval,
		clock:    clock.OrDefault(c),
		limiters: make(map[string]*bucket),
	}
}

// Allow takes a token for key, returning false when the window is spent.
// A non-positive limit disables limiting.
func (l *Limiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	b, exists := l.limiters[key]
	if !exists || now.Sub(b.lastFill) >= l.interval {
		b = &bucket{tokens: l.limit, lastFill: now}
		l.limiters[key] = b
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter returns how long key must wait for a fresh window.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.limiters[key]
	if !exists || b.tokens > 0 {
		return 0
	}
	wait := l.interval - l.clock.Since(b.lastFill)
	if wait < 0 {
		return 0
	}
	return wait
}

// Reset clears rate limit for a specific key
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// CleanupExpired removes buckets whose window ended more than maxAge ago.
func (l *Limiter) CleanupExpired(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for key, b := range l.limiters {
		if now.Sub(b.lastFill) > maxAge {
			delete(l.limiters, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// RunCleanup removes stale buckets every interval until ctx is done.
func (l *Limiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.CleanupExpired(l.interval)
		}
	}
}
