package prober

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the prober component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "prober",
		Factory:     NewComponent,
		Schema:      proberSchema,
		Type:        "processor",
		Protocol:    "estate",
		Domain:      "agentic",
		Description: "Scans listing pages for negotiation leverage",
		Version:     "0.1.0",
	})
}
