package network

import (
	"fmt"
	"os"
	"strings"
)

// IPv4ForwardPath is the sysctl controlling IPv4 forwarding.
const IPv4ForwardPath = "net.ipv4.ip_forward"

// DefaultSystemController is the default RealSystemController instance.
var DefaultSystemController SystemController = &RealSystemController{}

// RealSystemController is a concrete implementation of SystemController using os functions.
type RealSystemController struct{}

// ReadSysctl reads a sysctl value from the specified path.
func (r *RealSystemController) ReadSysctl(path string) (string, error) {
	data, err := os.ReadFile(sysctlPath(path))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value to the specified path.
func (r *RealSystemController) WriteSysctl(path, value string) error {
	return os.WriteFile(sysctlPath(path), []byte(value), 0644)
}

// IsNotExist checks if an error indicates that a file or directory does not exist.
func (r *RealSystemController) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

// sysctlPath converts dotted notation to a /proc/sys path.
func sysctlPath(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/proc/sys/" + strings.ReplaceAll(path, ".", "/")
}

// ReadSysctl reads a sysctl value from the specified path.
func ReadSysctl(path string) (string, error) {
	return DefaultSystemController.ReadSysctl(path)
}

// WriteSysctl writes a sysctl value to the specified path.
func WriteSysctl(path, value string) error {
	return DefaultSystemController.WriteSysctl(path, value)
}

// IsNotExist checks if an error indicates that a file or directory does not exist.
func IsNotExist(err error) bool {
	return DefaultSystemController.IsNotExist(err)
}

// EnableForwarding turns on IPv4 forwarding. Already-enabled hosts are left alone.
func EnableForwarding(sys SystemController) error {
	if sys == nil {
		sys = DefaultSystemController
	}
	if v, err := sys.ReadSysctl(IPv4ForwardPath); err == nil && v == "1" {
		return nil
	}
	if err := sys.WriteSysctl(IPv4ForwardPath, "1"); err != nil {
		return fmt.Errorf("failed to enable ip forwarding: %w", err)
	}
	return nil
}
