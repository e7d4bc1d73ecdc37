// Package geocoder implements the geocode worker: it resolves property
// addresses to coordinates through the Mapbox forward-geocoding API and
// replies to the coordinator per property.
package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/estatesearch/estatesearch/estate"
)

// Component implements the geocoder processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	geocoder *Geocoder

	consumer jetstream.Consumer

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	requestsHandled atomic.Int64
	lastActivityMu  sync.RWMutex
	lastActivity    time.Time
}

// NewComponent creates a new geocoder processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.EstateStream == "" {
		config.EstateStream = defaults.EstateStream
	}
	if config.RequestSubject == "" {
		config.RequestSubject = defaults.RequestSubject
	}
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Country == "" {
		config.Country = defaults.Country
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MapboxToken == "" {
		config.MapboxToken = os.Getenv("MAPBOX_API_KEY")
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()

	httpClient := &http.Client{Timeout: config.RequestTimeout}
	geocoder := NewGeocoder(httpClient, config.BaseURL, config.MapboxToken, config.Country)

	return &Component{
		name:       "geocoder",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		geocoder:   geocoder,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	if c.config.MapboxToken == "" {
		c.logger.Warn("No Mapbox token configured, geocode requests will fail")
	}
	return nil
}

// Start begins consuming geocode requests.
func (c *Component) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("component already running")
	}
	if c.natsClient == nil {
		c.mu.Unlock()
		return fmt.Errorf("NATS client required")
	}

	c.running = true
	c.startTime = time.Now()

	subCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	js, err := c.natsClient.JetStream()
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(subCtx, c.config.EstateStream)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.EstateStream, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       "geocoder",
		FilterSubject: c.config.RequestSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       300 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create consumer: %w", err)
	}
	c.consumer = consumer

	go c.consumeLoop(subCtx)

	c.logger.Info("geocoder started",
		"stream", c.config.EstateStream,
		"subject", c.config.RequestSubject)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

func (c *Component) consumeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := c.consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleRequest(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "error", msgs.Error())
		}
	}
}

// handleRequest geocodes one address and replies. Provider failures become
// failure replies rather than redeliveries; the coordinator treats them as
// a degraded field, not a lost request.
func (c *Component) handleRequest(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK request during shutdown", "error", err)
		}
		return
	}

	req, err := estate.ParsePayload[estate.GeocodeRequest](msg.Data())
	if err != nil {
		c.logger.Warn("Malformed geocode request, discarding", "error", err)
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM malformed request", "error", err)
		}
		return
	}

	reply := &estate.GeocodeReply{
		Header:        req.Header,
		PropertyIndex: req.PropertyIndex,
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	coords, fullAddress, err := c.geocoder.Geocode(callCtx, req.Address)
	cancel()
	if err != nil {
		c.logger.Warn("Geocoding failed",
			"address", req.Address,
			"property_index", req.PropertyIndex,
			"error", err)
		reply.Error = err.Error()
	} else {
		reply.Coordinates = coords
		reply.FullAddress = fullAddress
		c.logger.Debug("Geocoded address",
			"address", req.Address,
			"longitude", coords.Longitude,
			"latitude", coords.Latitude)
	}

	if err := c.publishReply(ctx, reply); err != nil {
		c.logger.Error("Failed to publish geocode reply", "error", err)
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK request", "error", err)
		}
		return
	}

	c.requestsHandled.Add(1)
	c.updateLastActivity()

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK request", "error", err)
	}
}

func (c *Component) publishReply(ctx context.Context, reply *estate.GeocodeReply) error {
	baseMsg := message.NewBaseMessage(reply.Schema(), reply, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	subject := estate.ReplySubject(estate.KindGeocode)
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}
	return nil
}

// Stop gracefully stops the component.
func (c *Component) Stop(_ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	c.running = false
	c.logger.Info("geocoder stopped", "requests_handled", c.requestsHandled.Load())
	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "geocoder",
		Type:        "processor",
		Description: "Resolves property addresses to coordinates via Mapbox",
		Version:     "0.1.0",
	}
}

// InputPorts returns configured input port definitions.
func (c *Component) InputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Inputs))
	for i, portDef := range c.config.Ports.Inputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionInput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// OutputPorts returns configured output port definitions.
func (c *Component) OutputPorts() []component.Port {
	if c.config.Ports == nil {
		return []component.Port{}
	}

	ports := make([]component.Port, len(c.config.Ports.Outputs))
	for i, portDef := range c.config.Ports.Outputs {
		ports[i] = component.Port{
			Name:        portDef.Name,
			Direction:   component.DirectionOutput,
			Required:    portDef.Required,
			Description: portDef.Description,
			Config: component.NATSPort{
				Subject: portDef.Subject,
			},
		}
	}
	return ports
}

// ConfigSchema returns the configuration schema.
func (c *Component) ConfigSchema() component.ConfigSchema {
	return geocoderSchema
}

// Health returns the current health status.
func (c *Component) Health() component.HealthStatus {
	c.mu.RLock()
	running := c.running
	startTime := c.startTime
	c.mu.RUnlock()

	status := "stopped"
	if running {
		status = "running"
	}

	return component.HealthStatus{
		Healthy:    running,
		LastCheck:  time.Now(),
		ErrorCount: 0,
		Uptime:     time.Since(startTime),
		Status:     status,
	}
}

// DataFlow returns current data flow metrics.
func (c *Component) DataFlow() component.FlowMetrics {
	return component.FlowMetrics{
		MessagesPerSecond: 0,
		BytesPerSecond:    0,
		ErrorRate:         0,
		LastActivity:      c.getLastActivity(),
	}
}

func (c *Component) updateLastActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Component) getLastActivity() time.Time {
	c.lastActivityMu.RLock()
	defer c.lastActivityMu.RUnlock()
	return c.lastActivity
}
