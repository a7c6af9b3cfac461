package firewall

import (
	"fmt"
	"regexp"
	"strings"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func isValidIdentifier(s string) bool {
	return identifierRegex.MatchString(s)
}

func quote(s string) string {
	if isValidIdentifier(s) {
		return s
	}
	return fmt.Sprintf("%q", s)
}

// forceQuote always quotes a string. Interface names are quoted so names
// like "eth0.100" are never read as expressions.
func forceQuote(s string) string {
	return fmt.Sprintf("%q", s)
}

// ScriptBuilder builds nftables scripts for atomic application.
type ScriptBuilder struct {
	lines     []string
	tableName string
	family    string
}

// NewScriptBuilder creates a new script builder for the given table.
func NewScriptBuilder(tableName, family string) *ScriptBuilder {
	return &ScriptBuilder{
		tableName: tableName,
		family:    family,
		lines:     make([]string, 0, 32),
	}
}

// AddLine adds a raw nft command line to the script.
func (b *ScriptBuilder) AddLine(line string) {
	b.lines = append(b.lines, line)
}

// AddTable adds a table creation command.
func (b *ScriptBuilder) AddTable() {
	b.AddLine(fmt.Sprintf("add table %s %s", b.family, b.tableName))
}

// ResetTable removes any existing copy of the table. Declaring the table
// first makes the delete succeed whether or not it existed.
func (b *ScriptBuilder) ResetTable() {
	b.AddLine(fmt.Sprintf("table %s %s", b.family, b.tableName))
	b.AddLine(fmt.Sprintf("delete table %s %s", b.family, b.tableName))
}

// AddChain adds a chain creation command.
// comment is optional - pass empty string for no comment.
func (b *ScriptBuilder) AddChain(name, chainType string, hook string, priority int, policy string, comment ...string) {
	qName := quote(name)

	commentClause := ""
	if len(comment) > 0 && comment[0] != "" {
		commentClause = fmt.Sprintf(" comment %q;", comment[0])
	}

	if chainType != "" && hook != "" {
		policyStr := ""
		if policy != "" {
			policyStr = fmt.Sprintf("policy %s; ", policy)
		}
		b.AddLine(fmt.Sprintf("add chain %s %s %s { type %s hook %s priority %d; %s%s}",
			b.family, b.tableName, qName, chainType, hook, priority, policyStr, commentClause))
	} else if commentClause != "" {
		b.AddLine(fmt.Sprintf("add chain %s %s %s {%s }", b.family, b.tableName, qName, commentClause))
	} else {
		b.AddLine(fmt.Sprintf("add chain %s %s %s", b.family, b.tableName, qName))
	}

	// Ensure the chain is empty before rules are added, without touching sets.
	b.AddLine(fmt.Sprintf("flush chain %s %s %s", b.family, b.tableName, qName))
}

// AddRule adds a rule to a chain.
// comment is optional - pass empty string for no comment.
// If the rule expression already contains a comment, the new comment is skipped.
func (b *ScriptBuilder) AddRule(chainName, ruleExpr string, comment ...string) {
	commentClause := ""
	if len(comment) > 0 && comment[0] != "" && !strings.Contains(ruleExpr, "comment ") {
		commentClause = fmt.Sprintf(" comment %q", comment[0])
	}
	b.AddLine(fmt.Sprintf("add rule %s %s %s %s%s", b.family, b.tableName, quote(chainName), ruleExpr, commentClause))
}

// AddSet adds a set creation command.
// comment is optional - pass empty string for no comment.
func (b *ScriptBuilder) AddSet(name, setType string, comment string, size int, flags ...string) {
	flagStr := ""
	if len(flags) > 0 {
		flagStr = " flags " + strings.Join(flags, ",") + ";"
	}
	sizeStr := ""
	if size > 0 {
		sizeStr = fmt.Sprintf(" size %d;", size)
	}
	commentClause := ""
	if comment != "" {
		commentClause = fmt.Sprintf(" comment %q;", comment)
	}
	b.AddLine(fmt.Sprintf("add set %s %s %s { type %s;%s%s%s }", b.family, b.tableName, quote(name), setType, flagStr, sizeStr, commentClause))
}

// AddSetElements adds elements to an existing set.
func (b *ScriptBuilder) AddSetElements(setName string, elements []string) {
	if len(elements) == 0 {
		return
	}
	b.AddLine(fmt.Sprintf("add element %s %s %s { %s }", b.family, b.tableName, quote(setName), strings.Join(elements, ", ")))
}

// Build returns the complete script as a string.
func (b *ScriptBuilder) Build() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// String returns the script for debugging.
func (b *ScriptBuilder) String() string {
	return b.Build()
}
