package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuote(t *testing.T) {
	assert.Equal(t, "clients", quote("clients"))
	assert.Equal(t, `"bad name"`, quote("bad name"))
	assert.Equal(t, `"eth0"`, forceQuote("eth0"))
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"netguard", "net_guard", "ng-1", "eth0.100"}
	for _, s := range valid {
		assert.True(t, isValidIdentifier(s), s)
	}

	invalid := []string{"", "set; rm -rf /", "set$(whoami)", "a b", "x/y"}
	for _, s := range invalid {
		assert.False(t, isValidIdentifier(s), s)
	}
}

func TestScriptBuilder_Chain(t *testing.T) {
	sb := NewScriptBuilder("netguard", "inet")
	sb.AddChain("forward", "filter", "forward", 0, "drop", "main")
	sb.AddChain("helper", "", "", 0, "")

	lines := strings.Split(strings.TrimSpace(sb.Build()), "\n")
	assert.Equal(t, []string{
		`add chain inet netguard forward { type filter hook forward priority 0; policy drop;  comment "main";}`,
		"flush chain inet netguard forward",
		"add chain inet netguard helper",
		"flush chain inet netguard helper",
	}, lines)
}

func TestScriptBuilder_RuleComment(t *testing.T) {
	sb := NewScriptBuilder("netguard", "inet")
	sb.AddRule("input", "tcp dport 80 accept", "portal")
	sb.AddRule("input", `udp dport 53 accept comment "dns"`, "ignored")

	script := sb.Build()
	assert.Contains(t, script, `add rule inet netguard input tcp dport 80 accept comment "portal"`)
	assert.NotContains(t, script, "ignored")
}

func TestScriptBuilder_SetAndElements(t *testing.T) {
	sb := NewScriptBuilder("netguard", "inet")
	sb.AddSet("revoked", "ether_addr", "", 128, "timeout")
	sb.AddSetElements("revoked", nil)
	sb.AddSetElements("revoked", []string{"aa:bb:cc:dd:ee:ff"})

	script := sb.Build()
	assert.Contains(t, script, "add set inet netguard revoked { type ether_addr; flags timeout; size 128; }")
	assert.Contains(t, script, "add element inet netguard revoked { aa:bb:cc:dd:ee:ff }")
	assert.Equal(t, 2, strings.Count(script, "\n"))
}

func TestScriptBuilder_ResetTable(t *testing.T) {
	sb := NewScriptBuilder("netguard", "inet")
	sb.ResetTable()
	assert.Equal(t, "table inet netguard\ndelete table inet netguard\n", sb.Build())
}
