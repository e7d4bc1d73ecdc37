package localdiscovery

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the local-discovery component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "local-discovery",
		Factory:     NewComponent,
		Schema:      discoverySchema,
		Type:        "processor",
		Protocol:    "estate",
		Domain:      "agentic",
		Description: "Finds points of interest near geocoded properties",
		Version:     "0.1.0",
	})
}
