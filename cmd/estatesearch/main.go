// Package main provides the estatesearch binary entry point.
// Estatesearch runs the estate search coordinator and its in-process
// workers (geocoder, local-discovery, prober) on top of NATS JetStream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/component"
	ssconfig "github.com/c360studio/semstreams/config"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/c360studio/semstreams/payloadbuiltins"
	"github.com/c360studio/semstreams/payloadregistry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/estatesearch/estatesearch/config"
	"github.com/estatesearch/estatesearch/estate"
	"github.com/estatesearch/estatesearch/processor/coordinator"
	"github.com/estatesearch/estatesearch/processor/geocoder"
	localdiscovery "github.com/estatesearch/estatesearch/processor/local-discovery"
	"github.com/estatesearch/estatesearch/processor/prober"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "estatesearch"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "estatesearch",
		Short: "Estate search orchestration service",
		Long: `Estatesearch coordinates multi-worker real estate searches over NATS.

It runs:
- The coordinator, which owns conversation sessions and fans worker
  requests out per search turn
- The geocoder, local-discovery, and prober workers

Scoping, research, intern, community, and negotiation workers run as
separate deployments and join over the same streams.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// processorComponent is the lifecycle surface main drives on each component.
type processorComponent interface {
	component.Discoverable
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

func run(configPath, logLevel string) error {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	natsClient, err := connectToNATS(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	if err := ensureStreams(ctx, cfg, natsClient, logger); err != nil {
		return err
	}

	slog.Info("Estatesearch ready",
		"version", Version,
		"user_stream", cfg.NATS.UserStream,
		"estate_stream", cfg.NATS.EstateStream)

	components, err := buildComponents(cfg, natsClient, logger)
	if err != nil {
		return err
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	started := make([]processorComponent, 0, len(components))
	for _, comp := range components {
		name := comp.Meta().Name
		if err := comp.Initialize(); err != nil {
			stopAll(started)
			return fmt.Errorf("initialize %s: %w", name, err)
		}
		if err := comp.Start(signalCtx); err != nil {
			stopAll(started)
			return fmt.Errorf("start %s: %w", name, err)
		}
		started = append(started, comp)
		slog.Info("Component started", "name", name)
	}

	httpServer := startMetricsServer(cfg, started, logger)

	// Block until shutdown signal
	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Metrics server shutdown error", "error", err)
		}
		cancel()
	}

	stopAll(started)
	slog.Info("Estatesearch shutdown complete")
	return nil
}

func stopAll(components []processorComponent) {
	// Stop in reverse start order
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		if err := comp.Stop(30 * time.Second); err != nil {
			slog.Error("Error stopping component", "name", comp.Meta().Name, "error", err)
		}
	}
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		// Env overrides apply to explicit config files too
		if url := os.Getenv("NATS_URL"); url != "" {
			cfg.NATS.URL = url
		}
		if token := os.Getenv("MAPBOX_API_KEY"); token != "" {
			cfg.Mapbox.Token = token
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return config.NewLoader(logger).Load()
}

func connectToNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*natsclient.Client, error) {
	logger.Info("Connecting to NATS", "url", cfg.NATS.URL)

	client, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithCircuitBreakerThreshold(20),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := client.Connect(ctx); err != nil {
		return nil, wrapNATSError(err, cfg.NATS.URL)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return nil, wrapNATSError(err, cfg.NATS.URL)
	}

	logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	return client, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set NATS_URL environment variable to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func ensureStreams(ctx context.Context, cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) error {
	logger.Debug("Creating JetStream streams")

	streamsCfg := &ssconfig.Config{
		Streams: ssconfig.StreamConfigs{
			cfg.NATS.UserStream: ssconfig.StreamConfig{
				Subjects: []string{
					"user.message.>",
					"user.response.>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
			cfg.NATS.EstateStream: ssconfig.StreamConfig{
				Subjects: []string{
					estate.RequestSubjectPrefix + ".>",
					estate.ReplySubjectPrefix + ".>",
				},
				MaxAge:   "24h",
				Storage:  "file",
				Replicas: 1,
			},
		},
	}

	streamsManager := ssconfig.NewStreamsManager(natsClient, logger)
	if err := streamsManager.EnsureStreams(ctx, streamsCfg); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	logger.Debug("JetStream streams ready")
	return nil
}

// buildComponents registers the component factories and constructs each one
// from the loaded service config.
func buildComponents(cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger) ([]processorComponent, error) {
	registry := component.NewRegistry()

	slog.Debug("Registering component factories")
	if err := coordinator.Register(registry); err != nil {
		return nil, fmt.Errorf("register coordinator: %w", err)
	}
	if err := geocoder.Register(registry); err != nil {
		return nil, fmt.Errorf("register geocoder: %w", err)
	}
	if err := localdiscovery.Register(registry); err != nil {
		return nil, fmt.Errorf("register local-discovery: %w", err)
	}
	if err := prober.Register(registry); err != nil {
		return nil, fmt.Errorf("register prober: %w", err)
	}

	factories := registry.ListFactories()
	slog.Info("Component factories registered", "count", len(factories))

	// Builtin payloads first, then the estate worker payloads on top
	payloads := payloadregistry.New()
	if err := payloadbuiltins.Register(payloads); err != nil {
		return nil, fmt.Errorf("register builtin payloads: %w", err)
	}
	if err := estate.RegisterPayloads(payloads); err != nil {
		return nil, fmt.Errorf("register estate payloads: %w", err)
	}

	deps := component.Dependencies{
		NATSClient:      natsClient,
		Logger:          logger,
		PayloadRegistry: payloads,
	}

	coordinatorCfg, _ := json.Marshal(map[string]any{
		"user_stream":           cfg.NATS.UserStream,
		"estate_stream":         cfg.NATS.EstateStream,
		"enrichment_window":     cfg.Coordinator.EnrichmentWindow,
		"idle_eviction":         cfg.Coordinator.IdleEviction,
		"max_properties":        cfg.Coordinator.MaxProperties,
		"worker_directory_path": cfg.Coordinator.WorkerDirectory,
		"map_style":             cfg.Mapbox.MapStyle,
		"mapbox_token":          cfg.Mapbox.Token,
	})
	geocoderCfg, _ := json.Marshal(map[string]any{
		"estate_stream": cfg.NATS.EstateStream,
		"mapbox_token":  cfg.Mapbox.Token,
	})
	discoveryCfg, _ := json.Marshal(map[string]any{
		"estate_stream": cfg.NATS.EstateStream,
		"mapbox_token":  cfg.Mapbox.Token,
	})
	proberCfg, _ := json.Marshal(map[string]any{
		"estate_stream": cfg.NATS.EstateStream,
	})

	specs := []struct {
		name    string
		factory func(json.RawMessage, component.Dependencies) (component.Discoverable, error)
		config  json.RawMessage
	}{
		{"coordinator", coordinator.NewComponent, coordinatorCfg},
		{"geocoder", geocoder.NewComponent, geocoderCfg},
		{"local-discovery", localdiscovery.NewComponent, discoveryCfg},
		{"prober", prober.NewComponent, proberCfg},
	}

	components := make([]processorComponent, 0, len(specs))
	for _, spec := range specs {
		comp, err := spec.factory(spec.config, deps)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", spec.name, err)
		}
		proc, ok := comp.(processorComponent)
		if !ok {
			return nil, fmt.Errorf("component %s does not implement lifecycle", spec.name)
		}
		components = append(components, proc)
	}

	return components, nil
}

// startMetricsServer serves /metrics and /healthz when an address is
// configured. Returns nil when metrics are disabled.
func startMetricsServer(cfg *config.Config, components []processorComponent, logger *slog.Logger) *http.Server {
	if cfg.Metrics.Addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		type componentHealth struct {
			Name    string `json:"name"`
			Healthy bool   `json:"healthy"`
			Status  string `json:"status"`
		}
		healthy := true
		statuses := make([]componentHealth, 0, len(components))
		for _, comp := range components {
			h := comp.Health()
			if !h.Healthy {
				healthy = false
			}
			statuses = append(statuses, componentHealth{
				Name:    comp.Meta().Name,
				Healthy: h.Healthy,
				Status:  h.Status,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"healthy":    healthy,
			"components": statuses,
		})
	})

	server := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Metrics server listening", "addr", cfg.Metrics.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	return server
}
