package estate

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/semstreams/message"
)

// Header carries the correlation fields shared by every worker exchange.
// Requests set both fields; replies echo them verbatim so the coordinator
// can resolve the outstanding request they answer.
type Header struct {
	CorrelationID string `json:"correlation_id"`
	SessionID     string `json:"session_id"`
}

// SetCorrelation fills in the routing fields. The coordinator calls this on
// every request just before dispatch; the embedded promotion makes it
// available on all request types.
func (h *Header) SetCorrelation(correlationID, sessionID string) {
	h.CorrelationID = correlationID
	h.SessionID = sessionID
}

func (h *Header) validateHeader() error {
	if h.CorrelationID == "" {
		return fmt.Errorf("correlation_id is required")
	}
	if h.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	return nil
}

// Reply is implemented by all worker reply payloads. It lets the
// coordinator resolve correlation and failure state without knowing the
// concrete type up front.
type Reply interface {
	message.Payload
	ReplyHeader() Header
	ReplyKind() Kind
	// FailureMessage returns the worker-reported error, or "" on success.
	FailureMessage() string
}

// ---------------------------------------------------------------------------
// Scoping
// ---------------------------------------------------------------------------

// ScopingRequest asks the scoping worker to interpret a user turn against
// the requirements collected so far.
type ScopingRequest struct {
	Header

	UserMessage string        `json:"user_message"`
	Known       *Requirements `json:"known,omitempty"`
}

// Schema implements message.Payload.
func (r *ScopingRequest) Schema() message.Type { return ScopingRequestType }

// Validate implements message.Payload.
func (r *ScopingRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.UserMessage == "" {
		return fmt.Errorf("user_message is required")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *ScopingRequest) MarshalJSON() ([]byte, error) {
	type Alias ScopingRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ScopingRequest) UnmarshalJSON(data []byte) error {
	type Alias ScopingRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// ScopingReply is the scoping worker's verdict on a user turn.
type ScopingReply struct {
	Header

	// AgentMessage is the conversational reply shown to the user when
	// requirements are still incomplete.
	AgentMessage      string        `json:"agent_message,omitempty"`
	IsComplete        bool          `json:"is_complete"`
	IsGeneralQuestion bool          `json:"is_general_question,omitempty"`
	GeneralQuestion   string        `json:"general_question,omitempty"`
	Requirements      *Requirements `json:"requirements,omitempty"`
	CommunityName     string        `json:"community_name,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *ScopingReply) Schema() message.Type { return ScopingReplyType }

// Validate implements message.Payload.
func (r *ScopingReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *ScopingReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *ScopingReply) ReplyKind() Kind { return KindScoping }

// FailureMessage implements Reply.
func (r *ScopingReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *ScopingReply) MarshalJSON() ([]byte, error) {
	type Alias ScopingReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ScopingReply) UnmarshalJSON(data []byte) error {
	type Alias ScopingReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Research
// ---------------------------------------------------------------------------

// ResearchRequest asks the research worker for candidate listings.
type ResearchRequest struct {
	Header

	Requirements Requirements `json:"requirements"`
	MaxResults   int          `json:"max_results,omitempty"`
}

// Schema implements message.Payload.
func (r *ResearchRequest) Schema() message.Type { return ResearchRequestType }

// Validate implements message.Payload.
func (r *ResearchRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if !r.Requirements.Complete() {
		return fmt.Errorf("requirements incomplete: missing %v", r.Requirements.Missing())
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *ResearchRequest) MarshalJSON() ([]byte, error) {
	type Alias ResearchRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ResearchRequest) UnmarshalJSON(data []byte) error {
	type Alias ResearchRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// ResearchReply carries the candidate listings found for a search.
// An empty Listings slice with no Error is a valid "no results" outcome.
type ResearchReply struct {
	Header

	Listings []Listing `json:"listings,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *ResearchReply) Schema() message.Type { return ResearchReplyType }

// Validate implements message.Payload.
func (r *ResearchReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *ResearchReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *ResearchReply) ReplyKind() Kind { return KindResearch }

// FailureMessage implements Reply.
func (r *ResearchReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *ResearchReply) MarshalJSON() ([]byte, error) {
	type Alias ResearchReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ResearchReply) UnmarshalJSON(data []byte) error {
	type Alias ResearchReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Intern (general Q&A)
// ---------------------------------------------------------------------------

// InternRequest routes a general area question to the intern worker.
type InternRequest struct {
	Header

	Question string `json:"question"`
	Location string `json:"location,omitempty"`
}

// Schema implements message.Payload.
func (r *InternRequest) Schema() message.Type { return InternRequestType }

// Validate implements message.Payload.
func (r *InternRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.Question == "" {
		return fmt.Errorf("question is required")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *InternRequest) MarshalJSON() ([]byte, error) {
	type Alias InternRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *InternRequest) UnmarshalJSON(data []byte) error {
	type Alias InternRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// InternReply is the intern worker's answer to a general question.
type InternReply struct {
	Header

	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *InternReply) Schema() message.Type { return InternReplyType }

// Validate implements message.Payload.
func (r *InternReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *InternReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *InternReply) ReplyKind() Kind { return KindIntern }

// FailureMessage implements Reply.
func (r *InternReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *InternReply) MarshalJSON() ([]byte, error) {
	type Alias InternReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *InternReply) UnmarshalJSON(data []byte) error {
	type Alias InternReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Geocode
// ---------------------------------------------------------------------------

// GeocodeRequest asks for the coordinates of one property's address.
type GeocodeRequest struct {
	Header

	PropertyIndex int    `json:"property_index"`
	Address       string `json:"address"`
}

// Schema implements message.Payload.
func (r *GeocodeRequest) Schema() message.Type { return GeocodeRequestType }

// Validate implements message.Payload.
func (r *GeocodeRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.Address == "" {
		return fmt.Errorf("address is required")
	}
	if r.PropertyIndex < 0 {
		return fmt.Errorf("property_index must be non-negative")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *GeocodeRequest) MarshalJSON() ([]byte, error) {
	type Alias GeocodeRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *GeocodeRequest) UnmarshalJSON(data []byte) error {
	type Alias GeocodeRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// GeocodeReply returns the coordinates for one property, or a failure.
type GeocodeReply struct {
	Header

	PropertyIndex int          `json:"property_index"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	FullAddress   string       `json:"full_address,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *GeocodeReply) Schema() message.Type { return GeocodeReplyType }

// Validate implements message.Payload.
func (r *GeocodeReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *GeocodeReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *GeocodeReply) ReplyKind() Kind { return KindGeocode }

// FailureMessage implements Reply.
func (r *GeocodeReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *GeocodeReply) MarshalJSON() ([]byte, error) {
	type Alias GeocodeReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *GeocodeReply) UnmarshalJSON(data []byte) error {
	type Alias GeocodeReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Discovery (points of interest)
// ---------------------------------------------------------------------------

// DiscoveryRequest asks for points of interest around one property.
// Dispatched only after that property geocoded successfully.
type DiscoveryRequest struct {
	Header

	PropertyIndex int         `json:"property_index"`
	Coordinates   Coordinates `json:"coordinates"`
}

// Schema implements message.Payload.
func (r *DiscoveryRequest) Schema() message.Type { return DiscoveryRequestType }

// Validate implements message.Payload.
func (r *DiscoveryRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.PropertyIndex < 0 {
		return fmt.Errorf("property_index must be non-negative")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *DiscoveryRequest) MarshalJSON() ([]byte, error) {
	type Alias DiscoveryRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *DiscoveryRequest) UnmarshalJSON(data []byte) error {
	type Alias DiscoveryRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// DiscoveryReply returns nearby points of interest for one property.
type DiscoveryReply struct {
	Header

	PropertyIndex int    `json:"property_index"`
	POIs          []POI  `json:"pois,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *DiscoveryReply) Schema() message.Type { return DiscoveryReplyType }

// Validate implements message.Payload.
func (r *DiscoveryReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *DiscoveryReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *DiscoveryReply) ReplyKind() Kind { return KindDiscovery }

// FailureMessage implements Reply.
func (r *DiscoveryReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *DiscoveryReply) MarshalJSON() ([]byte, error) {
	type Alias DiscoveryReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *DiscoveryReply) UnmarshalJSON(data []byte) error {
	type Alias DiscoveryReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Community analysis
// ---------------------------------------------------------------------------

// CommunityRequest asks for a community report on the search location.
type CommunityRequest struct {
	Header

	Location string `json:"location"`
}

// Schema implements message.Payload.
func (r *CommunityRequest) Schema() message.Type { return CommunityRequestType }

// Validate implements message.Payload.
func (r *CommunityRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.Location == "" {
		return fmt.Errorf("location is required")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *CommunityRequest) MarshalJSON() ([]byte, error) {
	type Alias CommunityRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *CommunityRequest) UnmarshalJSON(data []byte) error {
	type Alias CommunityRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// CommunityReply carries the community report, or a failure.
type CommunityReply struct {
	Header

	Report *CommunityReport `json:"report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *CommunityReply) Schema() message.Type { return CommunityReplyType }

// Validate implements message.Payload.
func (r *CommunityReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *CommunityReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *CommunityReply) ReplyKind() Kind { return KindCommunity }

// FailureMessage implements Reply.
func (r *CommunityReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *CommunityReply) MarshalJSON() ([]byte, error) {
	type Alias CommunityReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *CommunityReply) UnmarshalJSON(data []byte) error {
	type Alias CommunityReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Probe (negotiation leverage)
// ---------------------------------------------------------------------------

// ProbeRequest asks the prober to gather leverage intelligence on one listing.
type ProbeRequest struct {
	Header

	PropertyIndex int     `json:"property_index"`
	Listing       Listing `json:"listing"`
}

// Schema implements message.Payload.
func (r *ProbeRequest) Schema() message.Type { return ProbeRequestType }

// Validate implements message.Payload.
func (r *ProbeRequest) Validate() error {
	if err := r.validateHeader(); err != nil {
		return err
	}
	if r.PropertyIndex < 0 {
		return fmt.Errorf("property_index must be non-negative")
	}
	if r.Listing.Address == "" && r.Listing.Link == "" {
		return fmt.Errorf("listing needs an address or link")
	}
	return nil
}

// MarshalJSON marshals the payload to JSON.
func (r *ProbeRequest) MarshalJSON() ([]byte, error) {
	type Alias ProbeRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ProbeRequest) UnmarshalJSON(data []byte) error {
	type Alias ProbeRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// ProbeReply carries one listing's leverage report, or a failure.
type ProbeReply struct {
	Header

	PropertyIndex int             `json:"property_index"`
	Report        *LeverageReport `json:"report,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *ProbeReply) Schema() message.Type { return ProbeReplyType }

// Validate implements message.Payload.
func (r *ProbeReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *ProbeReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *ProbeReply) ReplyKind() Kind { return KindProbe }

// FailureMessage implements Reply.
func (r *ProbeReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *ProbeReply) MarshalJSON() ([]byte, error) {
	type Alias ProbeReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *ProbeReply) UnmarshalJSON(data []byte) error {
	type Alias ProbeReply
	return json.Unmarshal(data, (*Alias)(r))
}

// ---------------------------------------------------------------------------
// Negotiate
// ---------------------------------------------------------------------------

// NegotiateRequest asks the negotiator to synthesize leverage reports into
// session-level advice.
type NegotiateRequest struct {
	Header

	Reports []LeverageReport `json:"reports"`
}

// Schema implements message.Payload.
func (r *NegotiateRequest) Schema() message.Type { return NegotiateRequestType }

// Validate implements message.Payload.
func (r *NegotiateRequest) Validate() error { return r.validateHeader() }

// MarshalJSON marshals the payload to JSON.
func (r *NegotiateRequest) MarshalJSON() ([]byte, error) {
	type Alias NegotiateRequest
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *NegotiateRequest) UnmarshalJSON(data []byte) error {
	type Alias NegotiateRequest
	return json.Unmarshal(data, (*Alias)(r))
}

// NegotiateReply carries the negotiation advice, or a failure.
type NegotiateReply struct {
	Header

	Advice *NegotiationAdvice `json:"advice,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Schema implements message.Payload.
func (r *NegotiateReply) Schema() message.Type { return NegotiateReplyType }

// Validate implements message.Payload.
func (r *NegotiateReply) Validate() error { return r.validateHeader() }

// ReplyHeader implements Reply.
func (r *NegotiateReply) ReplyHeader() Header { return r.Header }

// ReplyKind implements Reply.
func (r *NegotiateReply) ReplyKind() Kind { return KindNegotiate }

// FailureMessage implements Reply.
func (r *NegotiateReply) FailureMessage() string { return r.Error }

// MarshalJSON marshals the payload to JSON.
func (r *NegotiateReply) MarshalJSON() ([]byte, error) {
	type Alias NegotiateReply
	return json.Marshal((*Alias)(r))
}

// UnmarshalJSON unmarshals the payload from JSON.
func (r *NegotiateReply) UnmarshalJSON(data []byte) error {
	type Alias NegotiateReply
	return json.Unmarshal(data, (*Alias)(r))
}

// Message types for every request/reply pair.
var (
	ScopingRequestType   = message.Type{Domain: "estate", Category: "scoping-request", Version: "v1"}
	ScopingReplyType     = message.Type{Domain: "estate", Category: "scoping-reply", Version: "v1"}
	ResearchRequestType  = message.Type{Domain: "estate", Category: "research-request", Version: "v1"}
	ResearchReplyType    = message.Type{Domain: "estate", Category: "research-reply", Version: "v1"}
	InternRequestType    = message.Type{Domain: "estate", Category: "intern-request", Version: "v1"}
	InternReplyType      = message.Type{Domain: "estate", Category: "intern-reply", Version: "v1"}
	GeocodeRequestType   = message.Type{Domain: "estate", Category: "geocode-request", Version: "v1"}
	GeocodeReplyType     = message.Type{Domain: "estate", Category: "geocode-reply", Version: "v1"}
	DiscoveryRequestType = message.Type{Domain: "estate", Category: "discovery-request", Version: "v1"}
	DiscoveryReplyType   = message.Type{Domain: "estate", Category: "discovery-reply", Version: "v1"}
	CommunityRequestType = message.Type{Domain: "estate", Category: "community-request", Version: "v1"}
	CommunityReplyType   = message.Type{Domain: "estate", Category: "community-reply", Version: "v1"}
	ProbeRequestType     = message.Type{Domain: "estate", Category: "probe-request", Version: "v1"}
	ProbeReplyType       = message.Type{Domain: "estate", Category: "probe-reply", Version: "v1"}
	NegotiateRequestType = message.Type{Domain: "estate", Category: "negotiate-request", Version: "v1"}
	NegotiateReplyType   = message.Type{Domain: "estate", Category: "negotiate-reply", Version: "v1"}
)
