package coordinator

import (
	"fmt"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/estatesearch/estatesearch/estate"
)

// coordinatorSchema defines the configuration schema.
var coordinatorSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the coordinator component.
type Config struct {
	// UserStream is the stream carrying user messages and responses.
	UserStream string `json:"user_stream"`

	// EstateStream is the stream carrying worker requests and replies.
	EstateStream string `json:"estate_stream"`

	// UserMessageSubject filters inbound user turns.
	UserMessageSubject string `json:"user_message_subject"`

	// ReplySubject filters worker replies.
	ReplySubject string `json:"reply_subject"`

	// EnrichmentWindow bounds how long a turn waits for enrichment replies
	// after the research results land. Expired requests resolve as failed
	// and the turn finalizes with whatever arrived.
	EnrichmentWindow time.Duration `json:"enrichment_window"`

	// RequestTimeout bounds how long any single worker request stays
	// outstanding outside the enrichment phase. An expired scoping or
	// intern request unblocks the session for the next user turn; an
	// expired research request ends the turn with no matches.
	RequestTimeout time.Duration `json:"request_timeout"`

	// SweepInterval is how often the deadline sweeper runs.
	SweepInterval time.Duration `json:"sweep_interval"`

	// RetryMax is how many republish attempts follow a failed dispatch.
	RetryMax int `json:"retry_max"`

	// RetryBackoff is the wait between dispatch attempts.
	RetryBackoff time.Duration `json:"retry_backoff"`

	// IdleEviction is how long a quiet session lives before eviction.
	IdleEviction time.Duration `json:"idle_eviction"`

	// EvictionInterval is how often idle sessions are swept.
	EvictionInterval time.Duration `json:"eviction_interval"`

	// MaxProperties caps how many research results a turn enriches.
	MaxProperties int `json:"max_properties"`

	// EnabledKinds lists the enrichment kinds to dispatch. Defaults to all.
	EnabledKinds []string `json:"enabled_kinds,omitempty"`

	// WorkerDirectoryPath points at the YAML worker directory overrides.
	WorkerDirectoryPath string `json:"worker_directory_path,omitempty"`

	// Map composition settings for the final response.
	MapStyle    string `json:"map_style"`
	MapWidth    int    `json:"map_width"`
	MapHeight   int    `json:"map_height"`
	MapboxToken string `json:"mapbox_token,omitempty"`

	// Ports contains input/output port definitions.
	Ports *component.PortConfig `json:"ports,omitempty"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	enabled := make([]string, 0, len(estate.EnrichmentKinds))
	for _, k := range estate.EnrichmentKinds {
		enabled = append(enabled, string(k))
	}

	return Config{
		UserStream:         "USER",
		EstateStream:       "ESTATE",
		UserMessageSubject: estate.UserMessageWildcard,
		ReplySubject:       estate.ReplyWildcard,
		EnrichmentWindow:   30 * time.Second,
		RequestTimeout:     60 * time.Second,
		SweepInterval:      2 * time.Second,
		RetryMax:           1,
		RetryBackoff:       500 * time.Millisecond,
		IdleEviction:       30 * time.Minute,
		EvictionInterval:   5 * time.Minute,
		MaxProperties:      5,
		EnabledKinds:       enabled,
		MapStyle:           "mapbox/streets-v12",
		MapWidth:           600,
		MapHeight:          400,
		Ports: &component.PortConfig{
			Inputs: []component.PortDefinition{
				{
					Name:        "user-messages",
					Type:        "jetstream",
					Subject:     estate.UserMessageWildcard,
					StreamName:  "USER",
					Description: "Inbound user turns",
					Required:    true,
				},
				{
					Name:        "worker-replies",
					Type:        "jetstream",
					Subject:     estate.ReplyWildcard,
					StreamName:  "ESTATE",
					Description: "Worker replies correlated to outstanding requests",
					Required:    true,
				},
			},
			Outputs: []component.PortDefinition{
				{
					Name:        "worker-requests",
					Type:        "jetstream",
					Subject:     estate.RequestSubjectPrefix + ".>",
					StreamName:  "ESTATE",
					Description: "Requests fanned out to workers",
					Required:    true,
				},
				{
					Name:        "user-responses",
					Type:        "jetstream",
					Subject:     "user.response.>",
					StreamName:  "USER",
					Description: "Status, result, and error responses to the user",
					Required:    true,
				},
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.UserStream == "" {
		return fmt.Errorf("user_stream is required")
	}
	if c.EstateStream == "" {
		return fmt.Errorf("estate_stream is required")
	}
	if c.EnrichmentWindow <= 0 {
		return fmt.Errorf("enrichment_window must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive")
	}
	if c.RetryMax < 0 {
		return fmt.Errorf("retry_max must be non-negative")
	}
	if c.IdleEviction <= 0 {
		return fmt.Errorf("idle_eviction must be positive")
	}
	if c.EvictionInterval <= 0 {
		return fmt.Errorf("eviction_interval must be positive")
	}
	if c.MaxProperties <= 0 {
		return fmt.Errorf("max_properties must be positive")
	}
	for _, name := range c.EnabledKinds {
		if !estate.Kind(name).Valid() {
			return fmt.Errorf("enabled_kinds: unknown kind %q", name)
		}
	}
	return nil
}

// KindEnabled reports whether an enrichment kind is dispatched this deploy.
func (c *Config) KindEnabled(k estate.Kind) bool {
	for _, name := range c.EnabledKinds {
		if estate.Kind(name) == k {
			return true
		}
	}
	return false
}
