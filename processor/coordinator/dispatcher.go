package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/google/uuid"

	"github.com/estatesearch/estatesearch/estate"
)

// publisher is the narrow publish seam. Production wires the NATS client;
// tests inject a fake to observe dispatched requests.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// natsPublisher publishes through the shared NATS client.
type natsPublisher struct {
	client *natsclient.Client
}

func (p *natsPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return p.client.PublishToStream(ctx, subject, data)
}

// workerRequest is any estate request payload whose correlation header the
// dispatcher fills in.
type workerRequest interface {
	message.Payload
	SetCorrelation(correlationID, sessionID string)
}

// Dispatcher builds, addresses, and publishes worker requests. It enforces
// per-turn idempotence: a kind/index slot dispatches at most once, so
// redelivered triggers cannot fan out twice.
type Dispatcher struct {
	pub       publisher
	directory *estate.Directory
	logger    *slog.Logger
	source    string

	retryMax       int
	retryBackoff   time.Duration
	requestTimeout time.Duration

	now func() time.Time
}

// NewDispatcher wires a dispatcher. requestTimeout bounds how long a
// dispatched request stays outstanding before the sweeper expires it.
func NewDispatcher(pub publisher, directory *estate.Directory, logger *slog.Logger, retryMax int, retryBackoff, requestTimeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		pub:            pub,
		directory:      directory,
		logger:         logger,
		source:         "coordinator",
		retryMax:       retryMax,
		retryBackoff:   retryBackoff,
		requestTimeout: requestTimeout,
		now:            time.Now,
	}
}

// guarded reports whether a kind dispatches at most once per turn.
// Scoping and intern repeat across clarifying turns, so only the
// outstanding-request check applies to them.
func guarded(kind estate.Kind) bool {
	return kind != estate.KindScoping && kind != estate.KindIntern
}

// Dispatch publishes one worker request for a session. index is -1 for
// session-level kinds. A slot with an unresolved outstanding request, or a
// once-per-turn slot already consumed, is a no-op. On permanent publish
// failure the slot is marked consumed and the error returned; the caller
// resolves the slot as failed so the completion predicate is unaffected by
// the lost request.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *Session, kind estate.Kind, index int, req workerRequest) error {
	if sess.HasOutstanding(kind, index) || (guarded(kind) && sess.AlreadyDispatched(kind, index)) {
		d.logger.Debug("Skipping duplicate dispatch",
			"session_id", sess.ID,
			"kind", kind,
			"property_index", index)
		return nil
	}
	if guarded(kind) {
		sess.MarkDispatched(kind, index)
	}

	correlationID := uuid.New().String()
	req.SetCorrelation(correlationID, sess.ID)
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid %s request: %w", kind, err)
	}

	subject, err := d.directory.Lookup(kind)
	if err != nil {
		return fmt.Errorf("route %s request: %w", kind, err)
	}

	baseMsg := message.NewBaseMessage(req.Schema(), req, d.source)
	data, err := json.Marshal(baseMsg)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", kind, err)
	}

	if err := d.publishWithRetry(ctx, subject, data); err != nil {
		metricDispatchFailures.WithLabelValues(string(kind)).Inc()
		return fmt.Errorf("publish %s request to %s: %w", kind, subject, err)
	}

	dispatchedAt := d.now()
	sess.TrackOutstanding(&OutstandingRequest{
		CorrelationID: correlationID,
		Kind:          kind,
		PropertyIndex: index,
		DispatchedAt:  dispatchedAt,
		ExpiresAt:     dispatchedAt.Add(d.requestTimeout),
	})
	metricDispatches.WithLabelValues(string(kind)).Inc()

	d.logger.Debug("Dispatched worker request",
		"session_id", sess.ID,
		"kind", kind,
		"property_index", index,
		"correlation_id", correlationID,
		"subject", subject)
	return nil
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, subject string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt <= d.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryBackoff):
			}
		}
		if lastErr = d.pub.Publish(ctx, subject, data); lastErr == nil {
			return nil
		}
		d.logger.Warn("Publish attempt failed",
			"subject", subject,
			"attempt", attempt+1,
			"error", lastErr)
	}
	return lastErr
}
