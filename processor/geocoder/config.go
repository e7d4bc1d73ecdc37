package geocoder

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/estatesearch/estatesearch/estate"
)

// geocoderSchema defines the configuration schema.
var geocoderSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the geocoder component.
type Config struct {
	// EstateStream is the stream carrying worker requests and replies.
	EstateStream string `json:"estate_stream"`

	// RequestSubject filters inbound geocode requests.
	RequestSubject string `json:"request_subject"`

	// BaseURL is the Mapbox geocoding endpoint. Overridable for tests.
	BaseURL string `json:"base_url,omitempty"`

	// MapboxToken authenticates against the Mapbox API. Falls back to the
	// MAPBOX_API_KEY environment variable.
	MapboxToken string `json:"mapbox_token,omitempty"`

	// Country restricts geocoding results, empty for worldwide.
	Country string `json:"country"`

	// RequestTimeout bounds one geocoding call.
	RequestTimeout time.Duration `json:"request_timeout"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		EstateStream:   "ESTATE",
		RequestSubject: estate.RequestSubject(estate.KindGeocode),
		BaseURL:        "https://api.mapbox.com/search/geocode/v6/forward",
		Country:        "US",
		RequestTimeout: 10 * time.Second,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "geocode-requests",
					Type:        "jetstream",
					Subject:     estate.RequestSubject(estate.KindGeocode),
					StreamName:  "ESTATE",
					Description: "Addresses to geocode",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "geocode-replies",
					Type:        "jetstream",
					Subject:     estate.ReplySubject(estate.KindGeocode),
					StreamName:  "ESTATE",
					Description: "Coordinates or failures per property",
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
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}
