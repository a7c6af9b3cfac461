package config

import (
	"net"
	"path/filepath"
	"strconv"

	"grimm.is/netguard/internal/brand"
)

// DefaultConfig returns a configuration with every block populated.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills omitted values in place.
func (c *Config) ApplyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.StateDir == "" {
		c.StateDir = brand.GetStateDir()
	}
	if c.UsersFile == "" {
		c.UsersFile = DefaultUsersFile
	}

	if c.Gateway == nil {
		c.Gateway = &GatewayConfig{}
	}
	g := c.Gateway
	if g.Backend == "" {
		g.Backend = BackendNFTables
	}
	if g.LANInterface == "" {
		g.LANInterface = DefaultLANInterface
	}
	if g.WANInterface == "" {
		g.WANInterface = DefaultWANInterface
	}
	if g.PortalIP == "" {
		g.PortalIP = DefaultPortalIP
	}
	if g.LANNetwork == "" {
		g.LANNetwork = DefaultLANNetwork
	}
	if g.UpstreamDNS == "" {
		g.UpstreamDNS = DefaultUpstreamDNS
	}
	if g.TableName == "" {
		g.TableName = DefaultTableName
	}

	if c.Portal == nil {
		c.Portal = &PortalConfig{}
	}
	p := c.Portal
	if p.Port == 0 {
		p.Port = DefaultPortalPort
	}
	if p.Listen == "" {
		p.Listen = net.JoinHostPort(g.PortalIP, strconv.Itoa(p.Port))
	}
	if p.LoginAttempts == 0 {
		p.LoginAttempts = DefaultLoginAttempts
	}
	if p.LoginWindow == "" {
		p.LoginWindow = DefaultLoginWindow
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if c.Session.Timeout == "" {
		c.Session.Timeout = DefaultTimeout
	}
	if c.Session.SweepInterval == "" {
		c.Session.SweepInterval = DefaultSweepInterval
	}

	if c.Identity == nil {
		c.Identity = &IdentityConfig{}
	}
	if c.Identity.ProbeTimeout == "" {
		c.Identity.ProbeTimeout = DefaultProbeTimeout
	}
	if c.Identity.ARPTable == "" {
		c.Identity.ARPTable = DefaultARPTable
	}

	if c.DNS == nil {
		c.DNS = &DNSConfig{}
	}
	if c.DNS.Listen == "" {
		c.DNS.Listen = net.JoinHostPort(g.PortalIP, "53")
	}
	if c.DNS.TTL == 0 {
		c.DNS.TTL = DefaultDNSTTL
	}

	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

// UsersPath returns the absolute path of the users file.
func (c *Config) UsersPath() string {
	if filepath.IsAbs(c.UsersFile) {
		return c.UsersFile
	}
	return filepath.Join(c.StateDir, c.UsersFile)
}

// DNSPort returns the port the captive DNS responder listens on.
func (c *Config) DNSPort() int {
	_, port, err := net.SplitHostPort(c.DNS.Listen)
	if err != nil {
		return 53
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 53
	}
	return n
}
