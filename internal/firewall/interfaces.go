package firewall

import "net/netip"

// CommandRunner abstracts shell command execution.
// Used for applying and validating nft scripts.
type CommandRunner interface {
	Run(name string, args ...string) error
	RunInput(input string, name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes actual shell commands.
// Methods are implemented in command_linux.go and command_stub.go
type RealCommandRunner struct{}

// DefaultCommandRunner is the default command runner.
var DefaultCommandRunner CommandRunner = &RealCommandRunner{}

// ConntrackFlusher drops tracked connections for an address so a revoked
// device cannot ride an established flow past the forward policy.
type ConntrackFlusher interface {
	FlushAddress(addr netip.Addr) (int, error)
}
