package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/stretchr/testify/require"

	"github.com/estatesearch/estatesearch/estate"
)

// fakePublisher captures every publish for inspection and can be told to
// fail specific subjects, standing in for the NATS client.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMsg
	failures  map[string]int
}

type publishedMsg struct {
	subject string
	data    []byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failures: make(map[string]int)}
}

// failSubject makes the next n publishes to subject fail.
func (f *fakePublisher) failSubject(subject string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[subject] = n
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failures[subject]; n > 0 {
		f.failures[subject] = n - 1
		return errTestPublish
	}
	f.published = append(f.published, publishedMsg{subject: subject, data: data})
	return nil
}

var errTestPublish = &publishError{}

type publishError struct{}

func (*publishError) Error() string { return "publish refused" }

// onSubject returns the payload bytes of every publish to one subject.
func (f *fakePublisher) onSubject(subject string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for _, p := range f.published {
		if p.subject == subject {
			out = append(out, p.data)
		}
	}
	return out
}

// requestsOf parses every dispatched request of one kind.
func requestsOf[T any](t *testing.T, pub *fakePublisher, kind estate.Kind) []*T {
	t.Helper()
	var out []*T
	for _, data := range pub.onSubject(estate.RequestSubject(kind)) {
		parsed, err := estate.ParsePayload[T](data)
		require.NoError(t, err)
		out = append(out, parsed)
	}
	return out
}

// userResponses parses every response published to the session's channel.
func userResponses(t *testing.T, pub *fakePublisher, sess *Session) []agentic.UserResponse {
	t.Helper()
	var out []agentic.UserResponse
	for _, data := range pub.onSubject(estate.UserResponseSubject(sess.ChannelType, sess.ChannelID)) {
		var resp agentic.UserResponse
		require.NoError(t, json.Unmarshal(data, &resp))
		out = append(out, resp)
	}
	return out
}

// resultResponses filters user responses down to final results.
func resultResponses(t *testing.T, pub *fakePublisher, sess *Session) []agentic.UserResponse {
	t.Helper()
	var out []agentic.UserResponse
	for _, resp := range userResponses(t, pub, sess) {
		if resp.Type == agentic.ResponseTypeResult {
			out = append(out, resp)
		}
	}
	return out
}

// harness wires an aggregator over fakes with a fresh session.
type harness struct {
	cfg  *Config
	pub  *fakePublisher
	agg  *Aggregator
	sess *Session
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.MapboxToken = "test-token"
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	pub := newFakePublisher()
	directory := estate.NewDirectory("", nil)
	dispatcher := NewDispatcher(pub, directory, nil, cfg.RetryMax, time.Millisecond, cfg.RequestTimeout)
	composer := NewMapComposer(cfg.MapStyle, cfg.MapWidth, cfg.MapHeight, cfg.MapboxToken)
	assembler := NewAssembler(composer)
	notifier := NewNotifier(pub, nil)
	agg := NewAggregator(&cfg, dispatcher, assembler, notifier, nil)

	sess := NewSession(SessionID("cli", "chan-1"), "cli", "chan-1", "user-1", time.Now())

	return &harness{cfg: &cfg, pub: pub, agg: agg, sess: sess}
}

// completeRequirements returns a filled requirements set.
func completeRequirements() estate.Requirements {
	budget := 500000.0
	beds := 3
	baths := 2
	return estate.Requirements{
		BudgetMax: &budget,
		Bedrooms:  &beds,
		Bathrooms: &baths,
		Location:  "Austin, TX",
	}
}

// startSearch drives the session through scoping into SEARCHING and returns
// the research request's header for crafting the reply.
func (h *harness) startSearch(t *testing.T, ctx context.Context) estate.Header {
	t.Helper()

	h.agg.HandleUserMessage(ctx, h.sess, "3 bed 2 bath in Austin under 500k")
	scopingReqs := requestsOf[estate.ScopingRequest](t, h.pub, estate.KindScoping)
	require.Len(t, scopingReqs, 1)

	reqs := completeRequirements()
	h.agg.Apply(ctx, h.sess, &estate.ScopingReply{
		Header:       scopingReqs[0].Header,
		IsComplete:   true,
		Requirements: &reqs,
	})
	require.Equal(t, PhaseSearching, h.sess.Phase)

	researchReqs := requestsOf[estate.ResearchRequest](t, h.pub, estate.KindResearch)
	require.Len(t, researchReqs, 1)
	return researchReqs[0].Header
}

// adoptListings drives the session into ENRICHING with n listings.
func (h *harness) adoptListings(t *testing.T, ctx context.Context, n int) {
	t.Helper()

	researchHeader := h.startSearch(t, ctx)
	listings := make([]estate.Listing, n)
	for i := range listings {
		listings[i] = estate.Listing{
			Address: testAddress(i),
			Price:   400000 + float64(i)*10000,
			Link:    "https://listings.example.com/" + testAddress(i),
		}
	}
	h.agg.Apply(ctx, h.sess, &estate.ResearchReply{
		Header:   researchHeader,
		Listings: listings,
	})
	require.Equal(t, PhaseEnriching, h.sess.Phase)
}

func testAddress(i int) string {
	return addrNames[i]
}

var addrNames = []string{
	"101 Main St",
	"202 Oak Ave",
	"303 Pine Rd",
	"404 Elm Dr",
	"505 Cedar Ln",
}

// headerFor finds the dispatched request header for a kind and property
// index, so tests can craft correlated replies.
func headerFor(t *testing.T, pub *fakePublisher, kind estate.Kind, index int) estate.Header {
	t.Helper()
	switch kind {
	case estate.KindGeocode:
		for _, req := range requestsOf[estate.GeocodeRequest](t, pub, kind) {
			if req.PropertyIndex == index {
				return req.Header
			}
		}
	case estate.KindDiscovery:
		for _, req := range requestsOf[estate.DiscoveryRequest](t, pub, kind) {
			if req.PropertyIndex == index {
				return req.Header
			}
		}
	case estate.KindProbe:
		for _, req := range requestsOf[estate.ProbeRequest](t, pub, kind) {
			if req.PropertyIndex == index {
				return req.Header
			}
		}
	case estate.KindCommunity:
		for _, req := range requestsOf[estate.CommunityRequest](t, pub, kind) {
			return req.Header
		}
	case estate.KindNegotiate:
		for _, req := range requestsOf[estate.NegotiateRequest](t, pub, kind) {
			return req.Header
		}
	case estate.KindIntern:
		for _, req := range requestsOf[estate.InternRequest](t, pub, kind) {
			return req.Header
		}
	}
	t.Fatalf("no dispatched %s request for index %d", kind, index)
	return estate.Header{}
}
