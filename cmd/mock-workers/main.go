// Package main implements mock estate workers for e2e testing.
// It answers scoping, research, intern, community, and negotiate requests
// from JSON fixture files, routing by request kind. This eliminates the
// need for real LLM-backed workers during coordinator wiring tests, making
// them fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-workers -fixtures /path/to/fixtures -nats nats://localhost:4222
//
// Fixture files are JSON named by kind (e.g., "scoping.json" answers
// estate.request.scoping). The file content is unmarshaled into the reply
// payload; correlation fields are echoed from the request.
//
// Sequential fixtures: if numbered files exist (e.g., "scoping.1.json",
// "scoping.2.json"), the Nth request of that kind gets the Nth fixture.
// After exhausting numbered fixtures, the base "scoping.json" repeats as
// fallback. This enables testing clarify→complete requirement loops.
//
// Kinds without fixtures are not consumed, so partial mock deployments can
// run next to real workers.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/estatesearch/estatesearch/estate"
)

// mockableKinds are the worker contracts this binary can answer. The
// geocoder, local-discovery, and prober workers ship in-process with the
// estatesearch binary and need no mock.
var mockableKinds = []estate.Kind{
	estate.KindScoping,
	estate.KindResearch,
	estate.KindIntern,
	estate.KindCommunity,
	estate.KindNegotiate,
}

type server struct {
	natsClient *natsclient.Client
	fixtures   map[estate.Kind][]string // kind → ordered fixture contents
	calls      atomic.Int64

	// Per-kind request counters for sequential fixture selection.
	kindCalls   map[estate.Kind]*atomic.Int64
	kindCallsMu sync.Mutex
}

func newServer(natsClient *natsclient.Client, fixtures map[estate.Kind][]string) *server {
	return &server{
		natsClient: natsClient,
		fixtures:   fixtures,
		kindCalls:  make(map[estate.Kind]*atomic.Int64),
	}
}

func (s *server) getKindCounter(kind estate.Kind) *atomic.Int64 {
	s.kindCallsMu.Lock()
	defer s.kindCallsMu.Unlock()
	if c, ok := s.kindCalls[kind]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.kindCalls[kind] = c
	return c
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture reply files")
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS server URL")
	port := flag.Int("port", 8091, "port for health/stats endpoints")
	flag.Parse()

	if envDir := os.Getenv("MOCK_WORKERS_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}
	if *fixtureDir == "" {
		*fixtureDir = "/fixtures"
	}
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		*natsURL = envURL
	}

	fixtures, err := loadFixtures(*fixtureDir)
	if err != nil {
		log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
	}
	log.Printf("Loaded %d kind(s) from %s", len(fixtures), *fixtureDir)
	for kind, seq := range fixtures {
		log.Printf("  kind: %s (%d fixture(s))", kind, len(seq))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := natsclient.NewClient(*natsURL,
		natsclient.WithName("mock-workers"),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
	)
	if err != nil {
		log.Fatalf("Failed to create NATS client: %v", err)
	}
	if err := client.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect to NATS at %s: %v", *natsURL, err)
	}
	defer client.Close(ctx)

	s := newServer(client, fixtures)

	js, err := client.JetStream()
	if err != nil {
		log.Fatalf("Failed to get JetStream: %v", err)
	}
	stream, err := js.Stream(ctx, "ESTATE")
	if err != nil {
		log.Fatalf("Failed to get ESTATE stream (is estatesearch running?): %v", err)
	}

	for kind := range fixtures {
		consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Durable:       "mock-" + string(kind),
			FilterSubject: estate.RequestSubject(kind),
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       300 * time.Second,
			MaxDeliver:    3,
		})
		if err != nil {
			log.Fatalf("Failed to create consumer for %s: %v", kind, err)
		}
		go s.consumeLoop(ctx, consumer, kind)
		log.Printf("Answering %s", estate.RequestSubject(kind))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Mock workers listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = httpServer.Shutdown(shutdownCtx)
	cancel()
}

func (s *server) consumeLoop(ctx context.Context, consumer jetstream.Consumer, kind estate.Kind) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			continue
		}

		for msg := range msgs.Messages() {
			s.handleRequest(ctx, msg, kind)
		}
	}
}

// requestHeader pulls just the correlation fields out of any request payload.
type requestHeader struct {
	estate.Header
}

func (s *server) handleRequest(ctx context.Context, msg jetstream.Msg, kind estate.Kind) {
	if ctx.Err() != nil {
		_ = msg.Nak()
		return
	}

	req, err := estate.ParsePayload[requestHeader](msg.Data())
	if err != nil || req.CorrelationID == "" || req.SessionID == "" {
		log.Printf("WARNING: malformed %s request, discarding: %v", kind, err)
		_ = msg.Term()
		return
	}

	callNum := s.calls.Add(1)

	seq := s.fixtures[kind]
	counter := s.getKindCounter(kind)
	callIndex := int(counter.Add(1) - 1)

	var fixture string
	if callIndex < len(seq) {
		fixture = seq[callIndex]
	} else {
		fixture = seq[len(seq)-1] // repeat last fixture
	}

	log.Printf("[call %d] kind=%s call_index=%d/%d correlation_id=%s",
		callNum, kind, callIndex+1, len(seq), req.CorrelationID)

	reply, err := buildReply(kind, []byte(fixture), req.Header)
	if err != nil {
		log.Printf("WARNING: bad fixture for kind=%s: %v", kind, err)
		_ = msg.Term()
		return
	}

	baseMsg := message.NewBaseMessage(reply.Schema(), reply, "mock-workers")
	data, err := json.Marshal(baseMsg)
	if err != nil {
		log.Printf("WARNING: marshal %s reply: %v", kind, err)
		_ = msg.Term()
		return
	}

	if err := s.natsClient.PublishToStream(ctx, estate.ReplySubject(kind), data); err != nil {
		log.Printf("WARNING: publish %s reply: %v", kind, err)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}

// buildReply unmarshals a fixture into the reply payload for a kind and
// stamps the request's correlation fields onto it.
func buildReply(kind estate.Kind, fixture []byte, hdr estate.Header) (estate.Reply, error) {
	switch kind {
	case estate.KindScoping:
		return unmarshalReply[estate.ScopingReply](fixture, hdr)
	case estate.KindResearch:
		return unmarshalReply[estate.ResearchReply](fixture, hdr)
	case estate.KindIntern:
		return unmarshalReply[estate.InternReply](fixture, hdr)
	case estate.KindCommunity:
		return unmarshalReply[estate.CommunityReply](fixture, hdr)
	case estate.KindNegotiate:
		return unmarshalReply[estate.NegotiateReply](fixture, hdr)
	default:
		return nil, fmt.Errorf("no reply type for kind %q", kind)
	}
}

func unmarshalReply[T any, PT interface {
	*T
	estate.Reply
	SetCorrelation(correlationID, sessionID string)
}](fixture []byte, hdr estate.Header) (estate.Reply, error) {
	var r T
	if err := json.Unmarshal(fixture, &r); err != nil {
		return nil, err
	}
	reply := PT(&r)
	reply.SetCorrelation(hdr.CorrelationID, hdr.SessionID)
	return reply, nil
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.kindCallsMu.Lock()
	callsByKind := make(map[string]int64, len(s.kindCalls))
	for kind, counter := range s.kindCalls {
		callsByKind[string(kind)] = counter.Load()
	}
	s.kindCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":   s.calls.Load(),
		"calls_by_kind": callsByKind,
	})
}

// numberedFileRe matches files like "scoping.1.json", "research.2.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads JSON files from dir and returns a map of kind→content
// sequence.
//
// For each kind, fixtures are ordered:
//  1. Numbered files (kind.1.json, kind.2.json, ...) in numeric order
//  2. Base file (kind.json) appended as the final fallback
func loadFixtures(dir string) (map[estate.Kind][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}

		content := string(data)

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			kind := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[kind] == nil {
				numberedFiles[kind] = make(map[int]string)
			}
			numberedFiles[kind][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ".json")] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[estate.Kind][]string)
	for _, kind := range mockableKinds {
		name := string(kind)
		var seq []string

		if numbered, ok := numberedFiles[name]; ok {
			indices := make([]int, 0, len(numbered))
			for idx := range numbered {
				indices = append(indices, idx)
			}
			sort.Ints(indices)
			for _, idx := range indices {
				seq = append(seq, numbered[idx])
			}
		}
		if base, ok := baseFiles[name]; ok {
			seq = append(seq, base)
		}

		if len(seq) > 0 {
			fixtures[kind] = seq
		}
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}

	return fixtures, nil
}
