//go:build !linux

package network

import "fmt"

// InspectLink is a stub for non-Linux platforms.
func InspectLink(name string) (LinkStatus, error) {
	return LinkStatus{Name: name}, fmt.Errorf("link inspection not supported on this platform")
}
