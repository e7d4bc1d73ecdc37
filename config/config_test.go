package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL nats://localhost:4222, got %s", cfg.NATS.URL)
	}
	if cfg.NATS.UserStream != "USER" {
		t.Errorf("expected default user stream USER, got %s", cfg.NATS.UserStream)
	}
	if cfg.Coordinator.EnrichmentWindow != 30*time.Second {
		t.Errorf("expected default enrichment window 30s, got %v", cfg.Coordinator.EnrichmentWindow)
	}
	if cfg.Coordinator.MaxProperties != 5 {
		t.Errorf("expected default max properties 5, got %d", cfg.Coordinator.MaxProperties)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing NATS URL",
			modify:  func(c *Config) { c.NATS.URL = "" },
			wantErr: true,
		},
		{
			name:    "missing estate stream",
			modify:  func(c *Config) { c.NATS.EstateStream = "" },
			wantErr: true,
		},
		{
			name:    "non-positive enrichment window",
			modify:  func(c *Config) { c.Coordinator.EnrichmentWindow = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive max properties",
			modify:  func(c *Config) { c.Coordinator.MaxProperties = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
nats:
  url: "nats://test:4222"
coordinator:
  enrichment_window: 45s
  max_properties: 3
  worker_directory: "/etc/estatesearch/workers.yaml"
mapbox:
  token: "file-token"
metrics:
  addr: ":9191"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if cfg.Coordinator.EnrichmentWindow != 45*time.Second {
		t.Errorf("expected enrichment window 45s, got %v", cfg.Coordinator.EnrichmentWindow)
	}
	if cfg.Coordinator.MaxProperties != 3 {
		t.Errorf("expected max properties 3, got %d", cfg.Coordinator.MaxProperties)
	}
	if cfg.Coordinator.WorkerDirectory != "/etc/estatesearch/workers.yaml" {
		t.Errorf("unexpected worker directory %s", cfg.Coordinator.WorkerDirectory)
	}
	if cfg.Mapbox.Token != "file-token" {
		t.Errorf("expected mapbox token file-token, got %s", cfg.Mapbox.Token)
	}
	if cfg.Metrics.Addr != ":9191" {
		t.Errorf("expected metrics addr :9191, got %s", cfg.Metrics.Addr)
	}
	// Defaults survive for unset fields
	if cfg.NATS.EstateStream != "ESTATE" {
		t.Errorf("expected estate stream default ESTATE, got %s", cfg.NATS.EstateStream)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		NATS: NATSConfig{
			URL: "nats://override:4222",
		},
		Coordinator: CoordinatorConfig{
			MaxProperties: 2,
		},
	}

	base.Merge(override)

	if base.NATS.URL != "nats://override:4222" {
		t.Errorf("expected NATS URL nats://override:4222, got %s", base.NATS.URL)
	}
	// Streams should remain from base since override didn't set them
	if base.NATS.UserStream != "USER" {
		t.Errorf("expected user stream to remain default, got %s", base.NATS.UserStream)
	}
	if base.Coordinator.MaxProperties != 2 {
		t.Errorf("expected max properties 2, got %d", base.Coordinator.MaxProperties)
	}
	if base.Coordinator.EnrichmentWindow != 30*time.Second {
		t.Errorf("expected enrichment window to remain default, got %v", base.Coordinator.EnrichmentWindow)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Mapbox.Token = "saved-token"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Mapbox.Token != "saved-token" {
		t.Errorf("expected mapbox token saved-token, got %s", loaded.Mapbox.Token)
	}
}
