package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"grimm.is/netguard/internal/brand"
	"grimm.is/netguard/internal/config"
	"grimm.is/netguard/internal/firewall"
	"grimm.is/netguard/internal/network"
)

// RunCheck validates the configuration file and prints what it would enforce.
func RunCheck(configFile string, verbose bool) error {
	return runCheck(os.Stdout, configPath(configFile), verbose)
}

func runCheck(out io.Writer, configFile string, verbose bool) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	Printer.Fprintf(out, "Configuration valid!\n")
	printSummary(out, cfg)

	topo := topology(cfg)
	Printer.Fprintf(out, "\nBaseline: %s\n", firewall.DescribeBaseline(topo))

	if !verbose {
		return nil
	}

	Printer.Fprintln(out, "\n--- Interfaces ---")
	var warnings []string
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ROLE\tNAME\tPRESENT\tUP\tCARRIER\tADDRESSES")
	for _, l := range []struct{ role, name string }{
		{"lan", cfg.Gateway.LANInterface},
		{"wan", cfg.Gateway.WANInterface},
	} {
		st, err := network.InspectLink(l.name)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\terror: %v\t\t\t\n", l.role, l.name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n", l.role, l.name,
			yesNo(st.Exists), yesNo(st.AdminUp), yesNo(st.Carrier), st.IPv4Addrs)
		if l.role == "lan" && st.Exists && !st.HasAddress(cfg.Gateway.PortalIP) {
			warnings = append(warnings, Printer.Sprintf("portal address %s is not assigned to %s", cfg.Gateway.PortalIP, l.name))
		}
	}
	w.Flush()
	for _, msg := range warnings {
		Printer.Fprintf(out, "Warning: %s\n", msg)
	}

	if cfg.Gateway.Backend == config.BackendMemory {
		return nil
	}
	sb, err := firewall.BuildBaselineScript(topo)
	if err != nil {
		return fmt.Errorf("failed to build ruleset: %w", err)
	}
	Printer.Fprintln(out, "\n--- Firewall Rules (nftables) ---")
	fmt.Fprintln(out, sb.Build())
	return nil
}

func printSummary(out io.Writer, cfg *config.Config) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Schema Version:\t%s\n", cfg.SchemaVersion)
	fmt.Fprintf(w, "Backend:\t%s\n", cfg.Gateway.Backend)
	fmt.Fprintf(w, "LAN / WAN:\t%s / %s\n", cfg.Gateway.LANInterface, cfg.Gateway.WANInterface)
	fmt.Fprintf(w, "Portal:\thttp://%s (listen %s)\n", cfg.Gateway.PortalIP, cfg.Portal.Listen)
	fmt.Fprintf(w, "Upstream DNS:\t%s\n", cfg.Gateway.UpstreamDNS)
	if cfg.DNS.IsEnabled() {
		fmt.Fprintf(w, "Captive DNS:\t%s (ttl %ds)\n", cfg.DNS.Listen, cfg.DNS.TTL)
	} else {
		fmt.Fprintf(w, "Captive DNS:\tdisabled\n")
	}
	fmt.Fprintf(w, "Session Timeout:\t%s\n", cfg.Session.TimeoutDuration())
	fmt.Fprintf(w, "Sweep Interval:\t%s (spoof check %s)\n", cfg.Session.SweepIntervalDuration(), yesNo(cfg.Session.SpoofCheckEnabled()))
	fmt.Fprintf(w, "Users File:\t%s\n", cfg.UsersPath())
	if cfg.Portal.MetricsListen != "" {
		fmt.Fprintf(w, "Metrics:\thttp://%s/metrics\n", cfg.Portal.MetricsListen)
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// PrintVersion prints build information.
func PrintVersion() {
	Printer.Printf("%s %s (commit %s, built %s)\n", brand.Name, brand.Version, brand.GitCommit, brand.BuildTime)
}
