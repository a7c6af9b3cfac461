// Package testutil holds helpers shared by tests that touch the host kernel.
package testutil

import (
	"os"
	"testing"
)

// RequireVM skips the test unless NETGUARD_VM_TEST is set. Tests that
// change real nftables state or interfaces belong behind this guard.
func RequireVM(t *testing.T) {
	t.Helper()
	if os.Getenv("NETGUARD_VM_TEST") == "" {
		t.Skip("Skipping test: requires NETGUARD_VM_TEST environment")
	}
}

// RequireRoot skips the test unless it runs as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("Skipping test: requires root")
	}
}
