// Package cmd implements the netguard subcommands.
package cmd

import (
	"fmt"

	"golang.org/x/sys/unix"

	"grimm.is/netguard/internal/brand"
	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/firewall"
	"grimm.is/netguard/internal/i18n"
	"grimm.is/netguard/internal/logging"
)

// Printer is the global message printer for the CLI
var Printer = i18n.NewCLIPrinter()

// geteuid is replaced in tests.
var geteuid = unix.Geteuid

func requireRoot(action string) error {
	if geteuid() != 0 {
		return fmt.Errorf("%s requires root privileges (try: sudo %s %s)", action, brand.BinaryName, action)
	}
	return nil
}

func configPath(path string) string {
	if path == "" {
		return brand.DefaultConfigPath()
	}
	return path
}

// newLogger builds the process logger from the log block and installs it
// as the default so components created later inherit it.
func newLogger(cfg *config.Config) *logging.Logger {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Log.Level)
	lc.JSON = cfg.Log.JSON
	logger := logging.New(lc)
	logging.SetDefault(logger)
	return logger
}

// topology maps the gateway block onto the ruleset description.
func topology(cfg *config.Config) firewall.Topology {
	topo := firewall.Topology{
		LANInterface: cfg.Gateway.LANInterface,
		WANInterface: cfg.Gateway.WANInterface,
		PortalIP:     cfg.Gateway.PortalIP,
		PortalPort:   cfg.Portal.Port,
		UpstreamDNS:  cfg.Gateway.UpstreamDNS,
		TableName:    cfg.Gateway.TableName,
	}
	if cfg.DNS.IsEnabled() {
		topo.DNSPort = cfg.DNSPort()
	}
	return topo
}

// newGateway returns the firewall backend selected by the config.
func newGateway(cfg *config.Config, logger *logging.Logger) (firewall.Gateway, error) {
	switch cfg.Gateway.Backend {
	case config.BackendMemory:
		return firewall.NewMemoryGateway(), nil
	case config.BackendNFTables, "":
		return firewall.NewNFTGateway(topology(cfg),
			firewall.WithLogger(logger.WithComponent("firewall")),
			firewall.WithValidation(cfg.Gateway.ValidateRules),
		)
	default:
		return nil, fmt.Errorf("unknown gateway backend %q", cfg.Gateway.Backend)
	}
}
