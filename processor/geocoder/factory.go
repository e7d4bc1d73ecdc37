package geocoder

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the geocoder component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "geocoder",
		Factory:     NewComponent,
		Schema:      geocoderSchema,
		Type:        "processor",
		Protocol:    "estate",
		Domain:      "agentic",
		Description: "Resolves property addresses to coordinates via Mapbox",
		Version:     "0.1.0",
	})
}
