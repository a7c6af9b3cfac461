// Package services defines the lifecycle shared by the network-facing
// components of the gateway (portal, captive DNS).
package services

import (
	"context"

	"grimm.is/netguard/internal/config"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	Addr    string `json:"addr,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Service defines the standard lifecycle methods for all services.
type Service interface {
	// Name returns the unique name of the service.
	Name() string

	// Reload applies the given configuration to the service.
	// It returns true if the service was restarted, and an error if one occurred.
	Reload(cfg *config.Config) (bool, error)

	// Start starts the service. It returns once the listener is bound.
	Start(ctx context.Context) error

	// Stop stops the service.
	Stop(ctx context.Context) error

	// Status returns the current status of the service.
	Status() ServiceStatus
}

// StopAll stops services in order, returning the first error.
func StopAll(ctx context.Context, svcs ...Service) error {
	var first error
	for _, s := range svcs {
		if s == nil {
			continue
		}
		if err := s.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
