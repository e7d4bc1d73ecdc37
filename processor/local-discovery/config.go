package localdiscovery

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/estatesearch/estatesearch/estate"
)

// discoverySchema defines the configuration schema.
var discoverySchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the local-discovery component.
type Config struct {
	// EstateStream is the stream carrying worker requests and replies.
	EstateStream string `json:"estate_stream"`

	// RequestSubject filters inbound discovery requests.
	RequestSubject string `json:"request_subject"`

	// BaseURL is the Mapbox Search Box category endpoint. Overridable for
	// tests; the category name is appended per call.
	BaseURL string `json:"base_url,omitempty"`

	// MapboxToken authenticates against the Mapbox API. Falls back to the
	// MAPBOX_API_KEY environment variable.
	MapboxToken string `json:"mapbox_token,omitempty"`

	// Categories to search near each property. Defaults to the standard set.
	Categories []string `json:"categories,omitempty"`

	// LimitPerCategory caps results per category.
	LimitPerCategory int `json:"limit_per_category"`

	// RequestTimeout bounds the whole multi-category search for one property.
	RequestTimeout time.Duration `json:"request_timeout"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		EstateStream:     "ESTATE",
		RequestSubject:   estate.RequestSubject(estate.KindDiscovery),
		BaseURL:          "https://api.mapbox.com/search/searchbox/v1/category",
		LimitPerCategory: 2,
		RequestTimeout:   20 * time.Second,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "discovery-requests",
					Type:        "jetstream",
					Subject:     estate.RequestSubject(estate.KindDiscovery),
					StreamName:  "ESTATE",
					Description: "Coordinates to search around",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "discovery-replies",
					Type:        "jetstream",
					Subject:     estate.ReplySubject(estate.KindDiscovery),
					StreamName:  "ESTATE",
					Description: "Points of interest per property",
					Required:    true,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.EstateStream == "" {
		return fmt.Errorf("estate_stream is required")
	}
	if c.RequestSubject == "" {
		return fmt.Errorf("request_subject is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.LimitPerCategory <= 0 {
		return fmt.Errorf("limit_per_category must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}
