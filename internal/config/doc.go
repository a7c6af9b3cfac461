// Package config handles gateway configuration.
//
// # File Format
//
// Configuration is written in HCL (preferred) or JSON. The file carries a
// schema_version attribute; files without one are read as 1.0.
//
//	schema_version = "1.0"
//
//	gateway {
//	  lan_interface = "eth1"
//	  wan_interface = "eth0"
//	  portal_ip     = "192.168.1.1"
//	  lan_network   = "192.168.1.0/24"
//	}
//
//	session {
//	  timeout        = "1h"
//	  sweep_interval = "30s"
//	}
//
// # Functions
//
// env("NAME") expands to the value of an environment variable, which keeps
// site-specific values out of the file:
//
//	gateway {
//	  upstream_dns = env("NETGUARD_UPSTREAM_DNS")
//	}
//
// # Defaults
//
// Every block is optional. ApplyDefaults fills in omitted values, then
// Validate reports every problem it finds at once.
package config
