// Package coordinator implements the estate search coordinator: it owns
// conversation sessions, fans worker requests out over JetStream, folds the
// replies back into per-property state, and assembles the composite response
// once a search turn settles.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/estatesearch/estatesearch/estate"
)

// Component implements the coordinator processor.
type Component struct {
	name       string
	config     Config
	natsClient *natsclient.Client
	logger     *slog.Logger

	store      *SessionStore
	directory  *estate.Directory
	dispatcher *Dispatcher
	aggregator *Aggregator

	// JetStream
	userConsumer  jetstream.Consumer
	replyConsumer jetstream.Consumer

	// Lifecycle
	running   bool
	startTime time.Time
	mu        sync.RWMutex
	cancel    context.CancelFunc

	// Metrics
	messagesProcessed atomic.Int64
	repliesApplied    atomic.Int64
	lastActivityMu    sync.RWMutex
	lastActivity      time.Time
}

// NewComponent creates a new coordinator processor.
func NewComponent(rawConfig json.RawMessage, deps component.Dependencies) (component.Discoverable, error) {
	var config Config
	if err := json.Unmarshal(rawConfig, &config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Apply defaults
	defaults := DefaultConfig()
	if config.UserStream == "" {
		config.UserStream = defaults.UserStream
	}
	if config.EstateStream == "" {
		config.EstateStream = defaults.EstateStream
	}
	if config.UserMessageSubject == "" {
		config.UserMessageSubject = defaults.UserMessageSubject
	}
	if config.ReplySubject == "" {
		config.ReplySubject = defaults.ReplySubject
	}
	if config.EnrichmentWindow == 0 {
		config.EnrichmentWindow = defaults.EnrichmentWindow
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.SweepInterval == 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	if config.RetryMax == 0 {
		config.RetryMax = defaults.RetryMax
	}
	if config.RetryBackoff == 0 {
		config.RetryBackoff = defaults.RetryBackoff
	}
	if config.IdleEviction == 0 {
		config.IdleEviction = defaults.IdleEviction
	}
	if config.EvictionInterval == 0 {
		config.EvictionInterval = defaults.EvictionInterval
	}
	if config.MaxProperties == 0 {
		config.MaxProperties = defaults.MaxProperties
	}
	if config.EnabledKinds == nil {
		config.EnabledKinds = defaults.EnabledKinds
	}
	if config.MapStyle == "" {
		config.MapStyle = defaults.MapStyle
	}
	if config.MapWidth == 0 {
		config.MapWidth = defaults.MapWidth
	}
	if config.MapHeight == 0 {
		config.MapHeight = defaults.MapHeight
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

	directory := estate.NewDirectory(config.WorkerDirectoryPath, logger)
	if err := directory.Load(); err != nil {
		logger.Warn("Failed to load worker directory, using defaults",
			"path", config.WorkerDirectoryPath,
			"error", err)
	}

	pub := &natsPublisher{client: deps.NATSClient}
	dispatcher := NewDispatcher(pub, directory, logger, config.RetryMax, config.RetryBackoff, config.RequestTimeout)
	composer := NewMapComposer(config.MapStyle, config.MapWidth, config.MapHeight, config.MapboxToken)
	assembler := NewAssembler(composer)
	notifier := NewNotifier(pub, logger)
	aggregator := NewAggregator(&config, dispatcher, assembler, notifier, logger)

	return &Component{
		name:       "coordinator",
		config:     config,
		natsClient: deps.NATSClient,
		logger:     logger,
		store:      NewSessionStore(),
		directory:  directory,
		dispatcher: dispatcher,
		aggregator: aggregator,
	}, nil
}

// Initialize prepares the component.
func (c *Component) Initialize() error {
	c.logger.Debug("Initialized coordinator",
		"enrichment_window", c.config.EnrichmentWindow,
		"max_properties", c.config.MaxProperties,
		"enabled_kinds", c.config.EnabledKinds)
	return nil
}

// Start begins consuming user messages and worker replies.
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

	userStream, err := js.Stream(subCtx, c.config.UserStream)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.UserStream, err)
	}

	estateStream, err := js.Stream(subCtx, c.config.EstateStream)
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("get stream %s: %w", c.config.EstateStream, err)
	}

	userConsumer, err := userStream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       "coordinator-user",
		FilterSubject: c.config.UserMessageSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       300 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create user consumer: %w", err)
	}
	c.userConsumer = userConsumer

	replyConsumer, err := estateStream.CreateOrUpdateConsumer(subCtx, jetstream.ConsumerConfig{
		Durable:       "coordinator-replies",
		FilterSubject: c.config.ReplySubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       300 * time.Second,
		MaxDeliver:    3,
	})
	if err != nil {
		c.rollbackStart(cancel)
		return fmt.Errorf("create reply consumer: %w", err)
	}
	c.replyConsumer = replyConsumer

	if err := c.directory.Watch(subCtx); err != nil {
		c.logger.Warn("Worker directory watch unavailable", "error", err)
	}

	go c.consumeLoop(subCtx, c.userConsumer, "user", c.handleUserMessage)
	go c.consumeLoop(subCtx, c.replyConsumer, "replies", c.handleReply)
	go c.sweepLoop(subCtx)
	go c.evictLoop(subCtx)

	c.logger.Info("coordinator started",
		"user_stream", c.config.UserStream,
		"estate_stream", c.config.EstateStream,
		"user_subject", c.config.UserMessageSubject,
		"reply_subject", c.config.ReplySubject)

	return nil
}

func (c *Component) rollbackStart(cancel context.CancelFunc) {
	c.mu.Lock()
	c.running = false
	c.cancel = nil
	c.mu.Unlock()
	cancel()
}

// consumeLoop continuously consumes messages from a JetStream consumer.
func (c *Component) consumeLoop(ctx context.Context, consumer jetstream.Consumer, name string, handler func(context.Context, jetstream.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Debug("Fetch timeout or error", "consumer", name, "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			handler(ctx, msg)
		}

		if msgs.Error() != nil && msgs.Error() != context.DeadlineExceeded {
			c.logger.Warn("Message fetch error", "consumer", name, "error", msgs.Error())
		}
	}
}

// handleUserMessage routes one inbound user turn to its session.
func (c *Component) handleUserMessage(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK user message during shutdown", "error", err)
		}
		return
	}

	var userMsg agentic.UserMessage
	if err := json.Unmarshal(msg.Data(), &userMsg); err != nil {
		c.logger.Warn("Malformed user message, discarding",
			"subject", msg.Subject(),
			"error", err)
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM malformed user message", "error", err)
		}
		return
	}
	if userMsg.Content == "" || userMsg.ChannelType == "" || userMsg.ChannelID == "" {
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM empty user message", "error", err)
		}
		return
	}

	sess, created := c.store.GetOrCreate(userMsg.ChannelType, userMsg.ChannelID, userMsg.UserID, time.Now())
	if created {
		metricSessionsCreated.Inc()
		metricLiveSessions.Set(float64(c.store.Len()))
		c.logger.Info("Session created",
			"session_id", sess.ID,
			"channel_type", userMsg.ChannelType,
			"user_id", userMsg.UserID)
	}

	sess.Lock()
	c.aggregator.HandleUserMessage(ctx, sess, userMsg.Content)
	sess.Unlock()

	c.messagesProcessed.Add(1)
	c.updateLastActivity()

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK user message", "error", err)
	}
}

// handleReply correlates one worker reply to its session and applies it.
// A reply for a missing session indicates a correlation bug and is logged
// loudly rather than silently swallowed.
func (c *Component) handleReply(ctx context.Context, msg jetstream.Msg) {
	if ctx.Err() != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("Failed to NAK reply during shutdown", "error", err)
		}
		return
	}

	reply, err := estate.ParseReply(msg.Subject(), msg.Data())
	if err != nil {
		c.logger.Warn("Malformed worker reply, discarding",
			"subject", msg.Subject(),
			"error", err)
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM malformed reply", "error", err)
		}
		return
	}

	hdr := reply.ReplyHeader()
	sess := c.store.Get(hdr.SessionID)
	if sess == nil {
		c.logger.Error("Worker reply references a session that does not exist, possible correlation bug",
			"session_id", hdr.SessionID,
			"correlation_id", hdr.CorrelationID,
			"kind", reply.ReplyKind(),
			"subject", msg.Subject())
		if err := msg.Term(); err != nil {
			c.logger.Warn("Failed to TERM orphan reply", "error", err)
		}
		return
	}

	sess.Lock()
	c.aggregator.Apply(ctx, sess, reply)
	sess.Unlock()

	c.repliesApplied.Add(1)
	c.updateLastActivity()

	if err := msg.Ack(); err != nil {
		c.logger.Warn("Failed to ACK reply", "error", err)
	}
}

// sweepLoop expires outstanding requests past their deadline.
func (c *Component) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			for _, sess := range c.store.All() {
				sess.Lock()
				c.aggregator.ExpireOverdue(ctx, sess, now)
				sess.Unlock()
			}
		}
	}
}

// evictLoop removes sessions idle past the eviction window.
func (c *Component) evictLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := c.store.Sweep(time.Now(), c.config.IdleEviction)
			for _, id := range evicted {
				metricSessionsEvicted.Inc()
				c.logger.Info("Session evicted after idle window", "session_id", id)
			}
			metricLiveSessions.Set(float64(c.store.Len()))
		}
	}
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
	if err := c.directory.Close(); err != nil {
		c.logger.Warn("Failed to close worker directory watcher", "error", err)
	}

	c.running = false
	c.logger.Info("coordinator stopped",
		"messages_processed", c.messagesProcessed.Load(),
		"replies_applied", c.repliesApplied.Load(),
		"live_sessions", c.store.Len())

	return nil
}

// Meta returns component metadata.
func (c *Component) Meta() component.Metadata {
	return component.Metadata{
		Name:        "coordinator",
		Type:        "processor",
		Description: "Orchestrates estate search sessions across specialist workers",
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
	return coordinatorSchema
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
