package coordinator

import (
	"fmt"
	"sync"
	"time"

	"github.com/estatesearch/estatesearch/estate"
)

// Phase is a session's position in the search lifecycle.
type Phase string

// Session phases. A session moves forward through them during a search turn
// and re-enters from FINALIZED when the user follows up.
const (
	PhaseCollecting Phase = "COLLECTING_REQUIREMENTS"
	PhaseSearching  Phase = "SEARCHING"
	PhaseEnriching  Phase = "ENRICHING"
	PhaseFinalized  Phase = "FINALIZED"
)

// PropertyRecord is one candidate property in a search turn. Its Index is
// assigned when the research reply lands and never changes afterward; map
// markers, summaries, and per-property worker requests all refer to it.
type PropertyRecord struct {
	Index   int
	Listing estate.Listing

	Coordinates *estate.Coordinates
	FullAddress string
	POIs        []estate.POI
	Leverage    *estate.LeverageReport

	// Failures records worker errors per kind. A failed enrichment leaves
	// its field nil and the property still ships in the final response.
	Failures map[estate.Kind]string
}

// Fail records a worker failure for one enrichment kind.
func (p *PropertyRecord) Fail(kind estate.Kind, msg string) {
	if p.Failures == nil {
		p.Failures = make(map[estate.Kind]string)
	}
	p.Failures[kind] = msg
}

// OutstandingRequest tracks one dispatched worker request awaiting its reply.
type OutstandingRequest struct {
	CorrelationID string
	Kind          estate.Kind
	// PropertyIndex is -1 for session-level requests.
	PropertyIndex int
	DispatchedAt  time.Time
	// ExpiresAt is when the sweeper gives up on the reply. During ENRICHING
	// the session-wide enrichment deadline governs instead.
	ExpiresAt time.Time
}

// dispatchKey identifies a kind/index slot for idempotent dispatch.
type dispatchKey struct {
	kind  estate.Kind
	index int
}

// Session is the per-user-channel conversation state. All mutation happens
// under Lock; the coordinator applies one message at a time per session.
type Session struct {
	mu sync.Mutex

	ID          string
	ChannelType string
	ChannelID   string
	UserID      string

	Phase        Phase
	Requirements estate.Requirements

	// CommunityName is the community the scoping worker identified, when any.
	CommunityName string

	Properties  []*PropertyRecord
	Outstanding map[string]*OutstandingRequest
	dispatched  map[dispatchKey]bool

	Community *estate.CommunityReport
	Advice    *estate.NegotiationAdvice

	// negotiateDispatched guards the one chained negotiate request per turn.
	negotiateDispatched bool

	// EnrichmentDeadline bounds how long the turn waits for enrichment
	// replies once the session enters ENRICHING.
	EnrichmentDeadline time.Time

	// finalized guards single-fire finalization for the current turn.
	finalized bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates a session in the requirements-gathering phase.
func NewSession(id, channelType, channelID, userID string, now time.Time) *Session {
	return &Session{
		ID:          id,
		ChannelType: channelType,
		ChannelID:   channelID,
		UserID:      userID,
		Phase:       PhaseCollecting,
		Outstanding: make(map[string]*OutstandingRequest),
		dispatched:  make(map[dispatchKey]bool),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Lock serializes mutation. Handlers hold it for the whole apply.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the apply lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch updates the idle timestamp.
func (s *Session) Touch(now time.Time) { s.UpdatedAt = now }

// BeginSearchTurn resets per-turn state when requirements are complete and a
// fresh search starts. Requirements survive; everything derived from the
// previous search is discarded.
func (s *Session) BeginSearchTurn(now time.Time) {
	s.Phase = PhaseSearching
	s.Properties = nil
	s.Outstanding = make(map[string]*OutstandingRequest)
	s.dispatched = make(map[dispatchKey]bool)
	s.Community = nil
	s.Advice = nil
	s.negotiateDispatched = false
	s.EnrichmentDeadline = time.Time{}
	s.finalized = false
	s.UpdatedAt = now
}

// AdoptListings assigns stable indices to the research results and moves the
// session into ENRICHING with the given deadline.
func (s *Session) AdoptListings(listings []estate.Listing, deadline time.Time) {
	s.Properties = make([]*PropertyRecord, len(listings))
	for i, listing := range listings {
		s.Properties[i] = &PropertyRecord{Index: i, Listing: listing}
	}
	s.Phase = PhaseEnriching
	s.EnrichmentDeadline = deadline
}

// Record returns the property record at index, or an error when the index is
// out of range for this turn.
func (s *Session) Record(index int) (*PropertyRecord, error) {
	if index < 0 || index >= len(s.Properties) {
		return nil, fmt.Errorf("property index %d out of range (have %d)", index, len(s.Properties))
	}
	return s.Properties[index], nil
}

// AlreadyDispatched reports whether a request of this kind for this slot was
// dispatched in the current turn. Session-level kinds use index -1.
func (s *Session) AlreadyDispatched(kind estate.Kind, index int) bool {
	return s.dispatched[dispatchKey{kind: kind, index: index}]
}

// HasOutstanding reports whether a request of this kind for this slot is
// currently awaiting its reply.
func (s *Session) HasOutstanding(kind estate.Kind, index int) bool {
	for _, req := range s.Outstanding {
		if req.Kind == kind && req.PropertyIndex == index {
			return true
		}
	}
	return false
}

// TrackOutstanding registers a dispatched request awaiting its reply.
func (s *Session) TrackOutstanding(req *OutstandingRequest) {
	s.Outstanding[req.CorrelationID] = req
}

// MarkDispatched records that a once-per-turn slot is consumed, whether the
// dispatch succeeded or failed permanently.
func (s *Session) MarkDispatched(kind estate.Kind, index int) {
	s.dispatched[dispatchKey{kind: kind, index: index}] = true
}

// Resolve removes and returns the outstanding request for a correlation id.
// The second return is false when no such request exists, which is how
// duplicate replies are detected.
func (s *Session) Resolve(correlationID string) (*OutstandingRequest, bool) {
	req, ok := s.Outstanding[correlationID]
	if !ok {
		return nil, false
	}
	delete(s.Outstanding, correlationID)
	return req, true
}

// ClearOutstanding drops every unresolved request. Used on terminal paths
// where no further replies can change the turn's outcome.
func (s *Session) ClearOutstanding() {
	s.Outstanding = make(map[string]*OutstandingRequest)
}

// OverdueOutstanding returns the outstanding requests whose per-request
// deadline has passed.
func (s *Session) OverdueOutstanding(now time.Time) []*OutstandingRequest {
	var overdue []*OutstandingRequest
	for _, req := range s.Outstanding {
		if !now.Before(req.ExpiresAt) {
			overdue = append(overdue, req)
		}
	}
	return overdue
}

// OutstandingOfKind counts unresolved requests of one kind.
func (s *Session) OutstandingOfKind(kind estate.Kind) int {
	n := 0
	for _, req := range s.Outstanding {
		if req.Kind == kind {
			n++
		}
	}
	return n
}

// MarkNegotiateDispatched records that the chained negotiate request went
// out; it only fires once per turn.
func (s *Session) MarkNegotiateDispatched() { s.negotiateDispatched = true }

// NegotiateDispatched reports whether the chained negotiate request already
// went out this turn.
func (s *Session) NegotiateDispatched() bool { return s.negotiateDispatched }

// EnrichmentSettled reports whether every dispatched enrichment request has
// resolved. It is monotonic within a turn: once true it stays true until the
// next turn resets the session.
func (s *Session) EnrichmentSettled() bool {
	return s.Phase == PhaseEnriching && len(s.Outstanding) == 0
}

// MarkFinalized flips the single-fire finalization guard. Returns false when
// the turn already finalized, making a second fire impossible.
func (s *Session) MarkFinalized() bool {
	if s.finalized {
		return false
	}
	s.finalized = true
	s.Phase = PhaseFinalized
	return true
}

// LeverageReports collects the leverage reports gathered so far, in
// property order.
func (s *Session) LeverageReports() []estate.LeverageReport {
	var reports []estate.LeverageReport
	for _, rec := range s.Properties {
		if rec.Leverage != nil {
			reports = append(reports, *rec.Leverage)
		}
	}
	return reports
}
