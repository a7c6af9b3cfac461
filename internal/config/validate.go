package config

import (
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
	"time"
)

var (
	interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,15}$`)
	tableNameRegex     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validate validates the entire configuration. Call ApplyDefaults first.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, c.validateGateway()...)
	errs = append(errs, c.validatePortal()...)
	errs = append(errs, c.validateSession()...)
	errs = append(errs, c.validateIdentity()...)
	errs = append(errs, c.validateDNS()...)

	return errs
}

func (c *Config) validateGateway() ValidationErrors {
	var errs ValidationErrors
	g := c.Gateway
	if g == nil {
		return ValidationErrors{{Field: "gateway", Message: "block is required"}}
	}

	switch g.Backend {
	case BackendNFTables, BackendMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "gateway.backend",
			Message: fmt.Sprintf("unknown backend %q (expected %q or %q)", g.Backend, BackendNFTables, BackendMemory),
		})
	}

	for field, name := range map[string]string{
		"gateway.lan_interface": g.LANInterface,
		"gateway.wan_interface": g.WANInterface,
	} {
		if !interfaceNameRegex.MatchString(name) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid interface name %q", name)})
		}
	}
	if g.LANInterface == g.WANInterface {
		errs = append(errs, ValidationError{Field: "gateway.wan_interface", Message: "must differ from lan_interface"})
	}

	if !tableNameRegex.MatchString(g.TableName) {
		errs = append(errs, ValidationError{Field: "gateway.table_name", Message: fmt.Sprintf("invalid table name %q", g.TableName)})
	}

	portal, err := netip.ParseAddr(g.PortalIP)
	if err != nil || !portal.Is4() {
		errs = append(errs, ValidationError{Field: "gateway.portal_ip", Message: fmt.Sprintf("not an IPv4 address: %q", g.PortalIP)})
	}
	lan, err := netip.ParsePrefix(g.LANNetwork)
	if err != nil || !lan.Addr().Is4() {
		errs = append(errs, ValidationError{Field: "gateway.lan_network", Message: fmt.Sprintf("not an IPv4 prefix: %q", g.LANNetwork)})
	} else if portal.IsValid() && !lan.Contains(portal) {
		errs = append(errs, ValidationError{Field: "gateway.portal_ip", Message: fmt.Sprintf("%s is outside lan_network %s", g.PortalIP, g.LANNetwork)})
	}
	if dns, err := netip.ParseAddr(g.UpstreamDNS); err != nil || !dns.Is4() {
		errs = append(errs, ValidationError{Field: "gateway.upstream_dns", Message: fmt.Sprintf("not an IPv4 address: %q", g.UpstreamDNS)})
	}

	return errs
}

func (c *Config) validatePortal() ValidationErrors {
	var errs ValidationErrors
	p := c.Portal
	if p.Port < 1 || p.Port > 65535 {
		errs = append(errs, ValidationError{Field: "portal.port", Message: fmt.Sprintf("out of range: %d", p.Port)})
	}
	if _, _, err := net.SplitHostPort(p.Listen); err != nil {
		errs = append(errs, ValidationError{Field: "portal.listen", Message: err.Error()})
	}
	if p.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(p.MetricsListen); err != nil {
			errs = append(errs, ValidationError{Field: "portal.metrics_listen", Message: err.Error()})
		}
	}
	if p.LoginAttempts < 0 {
		errs = append(errs, ValidationError{Field: "portal.login_attempts", Message: "must not be negative"})
	}
	errs = append(errs, validateDuration("portal.login_window", p.LoginWindow)...)
	return errs
}

func (c *Config) validateSession() ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, validateDuration("session.timeout", c.Session.Timeout)...)
	errs = append(errs, validateDuration("session.sweep_interval", c.Session.SweepInterval)...)
	return errs
}

func (c *Config) validateIdentity() ValidationErrors {
	return validateDuration("identity.probe_timeout", c.Identity.ProbeTimeout)
}

func (c *Config) validateDNS() ValidationErrors {
	var errs ValidationErrors
	if _, _, err := net.SplitHostPort(c.DNS.Listen); err != nil {
		errs = append(errs, ValidationError{Field: "dns.listen", Message: err.Error()})
	}
	if c.DNS.TTL < 0 {
		errs = append(errs, ValidationError{Field: "dns.ttl", Message: "must not be negative"})
	}
	return errs
}

func validateDuration(field, value string) ValidationErrors {
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration %q", value)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
