package prober

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/estatesearch/estatesearch/estate"
)

// proberSchema defines the configuration schema.
var proberSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the prober component.
type Config struct {
	// EstateStream is the stream carrying worker requests and replies.
	EstateStream string `json:"estate_stream"`

	// RequestSubject filters inbound probe requests.
	RequestSubject string `json:"request_subject"`

	// UserAgent identifies the fetcher to listing sites.
	UserAgent string `json:"user_agent"`

	// MaxContentSize caps the fetched page size in bytes.
	MaxContentSize int64 `json:"max_content_size"`

	// RequestTimeout bounds one page fetch and analysis.
	RequestTimeout time.Duration `json:"request_timeout"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		EstateStream:   "ESTATE",
		RequestSubject: estate.RequestSubject(estate.KindProbe),
		UserAgent:      "estatesearch-prober/0.1",
		MaxContentSize: 5 * 1024 * 1024,
		RequestTimeout: 20 * time.Second,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "probe-requests",
					Type:        "jetstream",
					Subject:     estate.RequestSubject(estate.KindProbe),
					StreamName:  "ESTATE",
					Description: "Listings to probe for negotiation leverage",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "probe-replies",
					Type:        "jetstream",
					Subject:     estate.ReplySubject(estate.KindProbe),
					StreamName:  "ESTATE",
					Description: "Leverage reports per property",
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
	if c.MaxContentSize <= 0 {
		return fmt.Errorf("max_content_size must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}
