package config

import "time"

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Gateway backends.
const (
	BackendNFTables = "nftables"
	BackendMemory   = "memory" // no packet filter changes, for lab use
)

// Config is the top-level structure for the gateway configuration.
type Config struct {
	// Schema version for backward compatibility (e.g., "1.0")
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// State directory (overrides default /var/lib/netguard)
	StateDir string `hcl:"state_dir,optional" json:"state_dir,omitempty"`

	// Users file, relative paths resolve against StateDir
	UsersFile string `hcl:"users_file,optional" json:"users_file,omitempty"`

	Gateway  *GatewayConfig  `hcl:"gateway,block" json:"gateway,omitempty"`
	Portal   *PortalConfig   `hcl:"portal,block" json:"portal,omitempty"`
	Session  *SessionConfig  `hcl:"session,block" json:"session,omitempty"`
	Identity *IdentityConfig `hcl:"identity,block" json:"identity,omitempty"`
	DNS      *DNSConfig      `hcl:"dns,block" json:"dns,omitempty"`
	Log      *LogConfig      `hcl:"log,block" json:"log,omitempty"`
}

// GatewayConfig describes the LAN/WAN topology the packet filter enforces.
type GatewayConfig struct {
	Backend      string `hcl:"backend,optional" json:"backend,omitempty"`
	LANInterface string `hcl:"lan_interface,optional" json:"lan_interface,omitempty"`
	WANInterface string `hcl:"wan_interface,optional" json:"wan_interface,omitempty"`
	PortalIP     string `hcl:"portal_ip,optional" json:"portal_ip,omitempty"`
	LANNetwork   string `hcl:"lan_network,optional" json:"lan_network,omitempty"`
	UpstreamDNS  string `hcl:"upstream_dns,optional" json:"upstream_dns,omitempty"`
	TableName    string `hcl:"table_name,optional" json:"table_name,omitempty"`

	// ValidateRules runs `nft -c` on the baseline before applying it.
	ValidateRules bool `hcl:"validate_rules,optional" json:"validate_rules,omitempty"`
}

// PortalConfig configures the HTTP interception layer.
type PortalConfig struct {
	Port          int    `hcl:"port,optional" json:"port,omitempty"`
	Listen        string `hcl:"listen,optional" json:"listen,omitempty"` // defaults to portal_ip:port
	LoginAttempts int    `hcl:"login_attempts,optional" json:"login_attempts,omitempty"`
	LoginWindow   string `hcl:"login_window,optional" json:"login_window,omitempty"`

	// MetricsListen serves /metrics on a separate address. Empty disables it.
	MetricsListen string `hcl:"metrics_listen,optional" json:"metrics_listen,omitempty"`
}

// SessionConfig controls admission lifetime and the integrity sweep.
type SessionConfig struct {
	Timeout       string `hcl:"timeout,optional" json:"timeout,omitempty"`
	SweepInterval string `hcl:"sweep_interval,optional" json:"sweep_interval,omitempty"`
	SpoofCheck    *bool  `hcl:"spoof_check,optional" json:"spoof_check,omitempty"`
}

// IdentityConfig controls IP to MAC resolution.
type IdentityConfig struct {
	Probe        *bool  `hcl:"probe,optional" json:"probe,omitempty"`
	ProbeTimeout string `hcl:"probe_timeout,optional" json:"probe_timeout,omitempty"`
	ARPTable     string `hcl:"arp_table,optional" json:"arp_table,omitempty"`
}

// DNSConfig configures the captive DNS responder.
type DNSConfig struct {
	Enabled *bool  `hcl:"enabled,optional" json:"enabled,omitempty"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty"` // defaults to portal_ip:53
	TTL     int    `hcl:"ttl,optional" json:"ttl,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `hcl:"level,optional" json:"level,omitempty"`
	JSON  bool   `hcl:"json,optional" json:"json,omitempty"`
}

// Default values, taken from the classic single-box portal layout.
const (
	DefaultLANInterface  = "eth1"
	DefaultWANInterface  = "eth0"
	DefaultPortalIP      = "192.168.1.1"
	DefaultLANNetwork    = "192.168.1.0/24"
	DefaultUpstreamDNS   = "8.8.8.8"
	DefaultTableName     = "netguard"
	DefaultPortalPort    = 80
	DefaultLoginAttempts = 5
	DefaultLoginWindow   = "1m"
	DefaultTimeout       = "1h"
	DefaultSweepInterval = "30s"
	DefaultProbeTimeout  = "500ms"
	DefaultARPTable      = "/proc/net/arp"
	DefaultDNSTTL        = 60
	DefaultLogLevel      = "info"
	DefaultUsersFile     = "users.json"
)

// IsEnabled reports whether the captive DNS responder should run.
func (d *DNSConfig) IsEnabled() bool {
	return boolOr(d.Enabled, true)
}

// SpoofCheckEnabled reports whether the spoof sweep should run.
func (s *SessionConfig) SpoofCheckEnabled() bool {
	return boolOr(s.SpoofCheck, true)
}

// ProbeEnabled reports whether unresolved addresses are pinged before
// the neighbour table is read a second time.
func (i *IdentityConfig) ProbeEnabled() bool {
	return boolOr(i.Probe, true)
}

// TimeoutDuration returns the parsed session timeout.
func (s *SessionConfig) TimeoutDuration() time.Duration {
	return mustDuration(s.Timeout, DefaultTimeout)
}

// SweepIntervalDuration returns the parsed sweep interval.
func (s *SessionConfig) SweepIntervalDuration() time.Duration {
	return mustDuration(s.SweepInterval, DefaultSweepInterval)
}

// ProbeTimeoutDuration returns the parsed probe timeout.
func (i *IdentityConfig) ProbeTimeoutDuration() time.Duration {
	return mustDuration(i.ProbeTimeout, DefaultProbeTimeout)
}

// LoginWindowDuration returns the parsed login rate-limit window.
func (p *PortalConfig) LoginWindowDuration() time.Duration {
	return mustDuration(p.LoginWindow, DefaultLoginWindow)
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// mustDuration parses s, falling back to def. Validate rejects bad values
// before they get here.
func mustDuration(s, def string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}
