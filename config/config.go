// Package config provides configuration loading and management for the
// estate search service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration.
type Config struct {
	NATS        NATSConfig        `yaml:"nats"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Mapbox      MapboxConfig      `yaml:"mapbox"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// NATSConfig configures the NATS connection and streams.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string `yaml:"url"`
	// UserStream carries user messages and responses.
	UserStream string `yaml:"user_stream"`
	// EstateStream carries worker requests and replies.
	EstateStream string `yaml:"estate_stream"`
}

// CoordinatorConfig tunes the coordinator component.
type CoordinatorConfig struct {
	// EnrichmentWindow bounds how long a search turn waits for enrichment.
	EnrichmentWindow time.Duration `yaml:"enrichment_window"`
	// IdleEviction is how long a quiet session lives before eviction.
	IdleEviction time.Duration `yaml:"idle_eviction"`
	// MaxProperties caps research results enriched per turn.
	MaxProperties int `yaml:"max_properties"`
	// WorkerDirectory points at the YAML worker subject overrides.
	WorkerDirectory string `yaml:"worker_directory"`
}

// MapboxConfig configures the Mapbox-backed workers and map composition.
type MapboxConfig struct {
	// Token authenticates API calls. The MAPBOX_API_KEY environment
	// variable takes precedence when set.
	Token string `yaml:"token"`
	// MapStyle is the static-map style for the composite response.
	MapStyle string `yaml:"map_style"`
}

// MetricsConfig configures the metrics/health HTTP endpoint.
type MetricsConfig struct {
	// Addr is the listen address, empty to disable.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:          "nats://localhost:4222",
			UserStream:   "USER",
			EstateStream: "ESTATE",
		},
		Coordinator: CoordinatorConfig{
			EnrichmentWindow: 30 * time.Second,
			IdleEviction:     30 * time.Minute,
			MaxProperties:    5,
		},
		Mapbox: MapboxConfig{
			MapStyle: "mapbox/streets-v12",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required")
	}
	if c.NATS.UserStream == "" {
		return fmt.Errorf("nats.user_stream is required")
	}
	if c.NATS.EstateStream == "" {
		return fmt.Errorf("nats.estate_stream is required")
	}
	if c.Coordinator.EnrichmentWindow <= 0 {
		return fmt.Errorf("coordinator.enrichment_window must be positive")
	}
	if c.Coordinator.IdleEviction <= 0 {
		return fmt.Errorf("coordinator.idle_eviction must be positive")
	}
	if c.Coordinator.MaxProperties <= 0 {
		return fmt.Errorf("coordinator.max_properties must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.UserStream != "" {
		c.NATS.UserStream = other.NATS.UserStream
	}
	if other.NATS.EstateStream != "" {
		c.NATS.EstateStream = other.NATS.EstateStream
	}

	// Coordinator
	if other.Coordinator.EnrichmentWindow != 0 {
		c.Coordinator.EnrichmentWindow = other.Coordinator.EnrichmentWindow
	}
	if other.Coordinator.IdleEviction != 0 {
		c.Coordinator.IdleEviction = other.Coordinator.IdleEviction
	}
	if other.Coordinator.MaxProperties != 0 {
		c.Coordinator.MaxProperties = other.Coordinator.MaxProperties
	}
	if other.Coordinator.WorkerDirectory != "" {
		c.Coordinator.WorkerDirectory = other.Coordinator.WorkerDirectory
	}

	// Mapbox
	if other.Mapbox.Token != "" {
		c.Mapbox.Token = other.Mapbox.Token
	}
	if other.Mapbox.MapStyle != "" {
		c.Mapbox.MapStyle = other.Mapbox.MapStyle
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
