package firewall

import (
	"fmt"
	"strings"
)

// Set and chain names inside the gateway table.
const (
	ClientsSet = "clients"
	RevokedSet = "revoked"

	chainInput       = "input"
	chainForward     = "forward"
	chainPrerouting  = "prerouting"
	chainPostrouting = "postrouting"
)

// BuildBaselineScript renders the complete default-deny ruleset for topo.
// The script replaces any previous copy of the table in one transaction.
func BuildBaselineScript(topo Topology) (*ScriptBuilder, error) {
	if err := topo.Validate(); err != nil {
		return nil, err
	}

	lan := forceQuote(topo.LANInterface)
	wan := forceQuote(topo.WANInterface)
	client := "ip saddr . ether saddr @" + ClientsSet

	sb := NewScriptBuilder(topo.TableName, "inet")
	sb.ResetTable()
	sb.AddTable()

	sb.AddSet(ClientsSet, "ipv4_addr . ether_addr", "authorized devices", 0)
	sb.AddSet(RevokedSet, "ether_addr", "revoked devices", 0)

	// Control plane: the portal and DNS responder must stay reachable.
	sb.AddChain(chainInput, "filter", "input", 0, "accept")
	sb.AddRule(chainInput, fmt.Sprintf("iifname %s tcp dport %d accept", lan, topo.PortalPort), "portal")
	if topo.DNSPort > 0 {
		sb.AddRule(chainInput, fmt.Sprintf("iifname %s udp dport %d accept", lan, topo.DNSPort), "captive dns")
		sb.AddRule(chainInput, fmt.Sprintf("iifname %s tcp dport %d accept", lan, topo.DNSPort), "captive dns")
	}

	sb.AddChain(chainForward, "filter", "forward", 0, "drop")
	sb.AddRule(chainForward, "ether saddr @"+RevokedSet+" drop", "revoked")
	sb.AddRule(chainForward, "ct state established,related accept")
	sb.AddRule(chainForward, fmt.Sprintf("iifname %s %s accept", lan, client), "authorized")

	sb.AddChain(chainPrerouting, "nat", "prerouting", -100, "accept")
	sb.AddRule(chainPrerouting, fmt.Sprintf("iifname %s %s udp dport 53 dnat ip to %s:53", lan, client, topo.UpstreamDNS), "authorized dns")
	sb.AddRule(chainPrerouting, fmt.Sprintf("iifname %s %s accept", lan, client), "authorized bypass")
	sb.AddRule(chainPrerouting, fmt.Sprintf("iifname %s tcp dport 80 dnat ip to %s:%d", lan, topo.PortalIP, topo.PortalPort), "portal redirect")
	if topo.DNSPort > 0 {
		sb.AddRule(chainPrerouting, fmt.Sprintf("iifname %s udp dport 53 dnat ip to %s:%d", lan, topo.PortalIP, topo.DNSPort), "captive dns")
	}

	sb.AddChain(chainPostrouting, "nat", "postrouting", 100, "accept")
	sb.AddRule(chainPostrouting, fmt.Sprintf("oifname %s masquerade", wan), "wan nat")

	return sb, nil
}

// BuildCleanupScript renders the script that removes the gateway table.
func BuildCleanupScript(tableName string) string {
	sb := NewScriptBuilder(tableName, "inet")
	sb.ResetTable()
	return sb.Build()
}

// DescribeBaseline summarizes the ruleset for logs and the check command.
func DescribeBaseline(topo Topology) string {
	parts := []string{
		fmt.Sprintf("table inet %s", topo.TableName),
		fmt.Sprintf("forward %s->%s default drop", topo.LANInterface, topo.WANInterface),
		fmt.Sprintf("http redirect to %s:%d", topo.PortalIP, topo.PortalPort),
	}
	if topo.DNSPort > 0 {
		parts = append(parts, fmt.Sprintf("dns redirect to %s:%d", topo.PortalIP, topo.DNSPort))
	}
	parts = append(parts, fmt.Sprintf("authorized dns via %s", topo.UpstreamDNS))
	return strings.Join(parts, ", ")
}
