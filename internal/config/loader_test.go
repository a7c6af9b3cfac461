package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadHCL_Minimal(t *testing.T) {
	cfg, err := LoadHCL([]byte(`schema_version = "1.0"`), "test.hcl")
	if err != nil {
		t.Fatalf("LoadHCL() error = %v", err)
	}

	if cfg.Gateway.LANInterface != DefaultLANInterface {
		t.Errorf("LANInterface = %q, want %q", cfg.Gateway.LANInterface, DefaultLANInterface)
	}
	if cfg.Portal.Listen != "192.168.1.1:80" {
		t.Errorf("Portal.Listen = %q, want 192.168.1.1:80", cfg.Portal.Listen)
	}
	if cfg.Session.TimeoutDuration() != time.Hour {
		t.Errorf("Timeout = %v, want 1h", cfg.Session.TimeoutDuration())
	}
	if cfg.Session.SweepIntervalDuration() != 30*time.Second {
		t.Errorf("SweepInterval = %v, want 30s", cfg.Session.SweepIntervalDuration())
	}
	if !cfg.Session.SpoofCheckEnabled() {
		t.Error("spoof check should default to enabled")
	}
	if !cfg.DNS.IsEnabled() {
		t.Error("dns should default to enabled")
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		t.Errorf("default config should validate: %v", errs)
	}
}

func TestLoadHCL_FullConfig(t *testing.T) {
	hcl := `
schema_version = "1.0"
users_file     = "/etc/netguard/users.json"

gateway {
  lan_interface = "wlan0"
  wan_interface = "eth0"
  portal_ip     = "10.10.0.1"
  lan_network   = "10.10.0.0/24"
  upstream_dns  = "1.1.1.1"
}

portal {
  port           = 8080
  login_attempts = 3
  metrics_listen = "127.0.0.1:9100"
}

session {
  timeout        = "2s"
  sweep_interval = "1s"
  spoof_check    = false
}

identity {
  probe = false
}

dns {
  enabled = false
  ttl     = 30
}

log {
  level = "debug"
  json  = true
}
`
	cfg, err := LoadHCL([]byte(hcl), "test.hcl")
	if err != nil {
		t.Fatalf("LoadHCL() error = %v", err)
	}

	if cfg.Portal.Listen != "10.10.0.1:8080" {
		t.Errorf("Portal.Listen = %q", cfg.Portal.Listen)
	}
	if cfg.DNS.Listen != "10.10.0.1:53" {
		t.Errorf("DNS.Listen = %q", cfg.DNS.Listen)
	}
	if cfg.Session.TimeoutDuration() != 2*time.Second {
		t.Errorf("Timeout = %v", cfg.Session.TimeoutDuration())
	}
	if cfg.Session.SpoofCheckEnabled() {
		t.Error("spoof_check = false was ignored")
	}
	if cfg.Identity.ProbeEnabled() {
		t.Error("probe = false was ignored")
	}
	if cfg.DNS.IsEnabled() {
		t.Error("dns enabled = false was ignored")
	}
	if cfg.UsersPath() != "/etc/netguard/users.json" {
		t.Errorf("UsersPath = %q", cfg.UsersPath())
	}
	if !cfg.Log.JSON || cfg.Log.Level != "debug" {
		t.Errorf("log block not decoded: %+v", cfg.Log)
	}
	if errs := cfg.Validate(); errs.HasErrors() {
		t.Errorf("Validate() = %v", errs)
	}
}

func TestLoadHCL_EnvFunction(t *testing.T) {
	t.Setenv("NETGUARD_TEST_DNS", "9.9.9.9")

	cfg, err := LoadHCL([]byte(`
gateway {
  upstream_dns = env("NETGUARD_TEST_DNS")
}
`), "env.hcl")
	if err != nil {
		t.Fatalf("LoadHCL() error = %v", err)
	}
	if cfg.Gateway.UpstreamDNS != "9.9.9.9" {
		t.Errorf("UpstreamDNS = %q, want 9.9.9.9", cfg.Gateway.UpstreamDNS)
	}
}

func TestLoadHCL_UnsupportedVersion(t *testing.T) {
	_, err := LoadHCL([]byte(`schema_version = "2.0"`), "v2.hcl")
	if err == nil {
		t.Fatal("expected error for unsupported schema version")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadHCL_UnknownAttribute(t *testing.T) {
	_, err := LoadHCL([]byte(`bogus = true`), "bad.hcl")
	if err == nil {
		t.Fatal("expected decode error for unknown attribute")
	}
}

func TestLoadFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netguard.json")
	data := `{"schema_version": "1.0", "session": {"timeout": "10m"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Session.TimeoutDuration() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", cfg.Session.TimeoutDuration())
	}
}

func TestLoadFile_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netguard.hcl")
	data := `
session {
  timeout = "forever"
}
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "session.timeout") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestSaveFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "netguard.hcl")

	cfg := DefaultConfig()
	cfg.Gateway.LANInterface = "br-lan"
	if err := SaveFile(cfg, path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Gateway.LANInterface != "br-lan" {
		t.Errorf("LANInterface = %q, want br-lan", loaded.Gateway.LANInterface)
	}
}
