// Package session is the admission table: the single record of which
// devices are currently allowed through the gateway.
//
// Every row is paired with a firewall binding. Rows are created only after
// the gateway accepts the binding and removed only through one path that
// also revokes it, so logout, expiry and spoof detection cannot race each
// other into a half-removed state.
package session

import "time"

// Session is one admitted device. Values are immutable snapshots.
type Session struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	Username  string    `json:"username"`
	MAC       string    `json:"mac"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns how long the session has existed at now.
func (s Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// ExpiresAt returns when the session runs out under timeout.
func (s Session) ExpiresAt(timeout time.Duration) time.Time {
	return s.CreatedAt.Add(timeout)
}

// Reason explains why a session ended.
type Reason string

const (
	ReasonLogout   Reason = "logout"
	ReasonExpired  Reason = "expired"
	ReasonSpoofed  Reason = "spoofed"
	ReasonShutdown Reason = "shutdown"
)

// Rejection reasons for CreateSession.
const (
	rejectInvalidIP = "invalid_ip"
	rejectNoMAC     = "no_mac"
	rejectFirewall  = "firewall"
)
