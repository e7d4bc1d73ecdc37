// Package prober implements the probe worker: it fetches a listing's page,
// reduces it to readable text, and scans it for signals a buyer can use as
// negotiation leverage.
package prober

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/estatesearch/estatesearch/estate"
)

// Component implements the prober processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	extractor *Extractor

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

// NewComponent creates a new prober processor.
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
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.MaxContentSize == 0 {
		config.MaxContentSize = defaults.MaxContentSize
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.Ports == nil {
		config.Ports = defaults.Ports
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := deps.GetLogger()

	httpClient := &http.Client{Timeout: config.RequestTimeout}
	extractor := NewExtractor(httpClient, config.UserAgent, config.MaxContentSize)

	return &Component{
		name:       "prober",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		extractor:  extractor,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	return nil
}

// Start begins consuming probe requests.
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
		Durable:       "prober",
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

	c.logger.Info("prober started",
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

// handleRequest probes one listing and replies. A listing without a link
// still gets a report scanned from the listing summary text.
func (c *Component) handleRequest(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK request during shutdown", "error", err)
		}
		return
	}

	req, err := estate.ParsePayload[estate.ProbeRequest](msg.Data())
	if err != nil {
		c.logger.Warn("Malformed probe request, discarding", "error", err)
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM malformed request", "error", err)
		}
		return
	}

	reply := &estate.ProbeReply{
		Header:        req.Header,
		PropertyIndex: req.PropertyIndex,
	}

	report, err := c.probe(ctx, req.Listing)
	if err != nil {
		c.logger.Warn("Probe failed",
			"address", req.Listing.Address,
			"property_index", req.PropertyIndex,
			"error", err)
		reply.Error = err.Error()
	} else {
		reply.Report = report
		c.logger.Debug("Probe complete",
			"address", req.Listing.Address,
			"findings", len(report.Findings),
			"score", report.LeverageScore)
	}

	if err := c.publishReply(ctx, reply); err != nil {
		c.logger.Error("Failed to publish probe reply", "error", err)
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

// probe gathers the text to scan. The listing page is the primary source;
// the listing's own summary text supplements it and stands alone when no
// link is available or the fetch fails.
func (c *Component) probe(ctx context.Context, listing estate.Listing) (*estate.LeverageReport, error) {
	text := listing.Summary

	if listing.Link != "" {
		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		page, err := c.extractor.Extract(callCtx, listing.Link)
		cancel()
		if err != nil {
			if text == "" {
				return nil, fmt.Errorf("fetch listing page: %w", err)
			}
			c.logger.Warn("Listing page unavailable, scanning summary only",
				"link", listing.Link,
				"error", err)
		} else {
			text = page.Markdown + "\n" + text
		}
	}

	if text == "" {
		return nil, fmt.Errorf("nothing to analyze for %q", listing.Address)
	}
	return Analyze(text), nil
}

func (c *Component) publishReply(ctx context.Context, reply *estate.ProbeReply) error {
	baseMsg := message.NewBaseMessage(reply.Schema(), reply, c.name)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	subject := estate.ReplySubject(estate.KindProbe)
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
	c.logger.Info("prober stopped", "requests_handled", c.requestsHandled.Load())
	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "prober",
		Type:        "processor",
		Description: "Scans listing pages for negotiation leverage",
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
	return proberSchema
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
