package estate

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/semstreams/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidation(t *testing.T) {
	header := Header{CorrelationID: "corr-1", SessionID: "sess-1"}

	tests := []struct {
		name    string
		payload message.Payload
		wantErr bool
	}{
		{
			name:    "scoping request valid",
			payload: &ScopingRequest{Header: header, UserMessage: "3 bed in Austin under 500k"},
		},
		{
			name:    "scoping request missing user message",
			payload: &ScopingRequest{Header: header},
			wantErr: true,
		},
		{
			name:    "missing correlation id",
			payload: &GeocodeRequest{Header: Header{SessionID: "sess-1"}, Address: "1 Main St"},
			wantErr: true,
		},
		{
			name:    "missing session id",
			payload: &GeocodeRequest{Header: Header{CorrelationID: "corr-1"}, Address: "1 Main St"},
			wantErr: true,
		},
		{
			name:    "geocode request valid",
			payload: &GeocodeRequest{Header: header, PropertyIndex: 2, Address: "1 Main St"},
		},
		{
			name:    "geocode request negative index",
			payload: &GeocodeRequest{Header: header, PropertyIndex: -1, Address: "1 Main St"},
			wantErr: true,
		},
		{
			name: "research request needs complete requirements",
			payload: &ResearchRequest{
				Header:       header,
				Requirements: Requirements{Location: "Austin, TX"},
			},
			wantErr: true,
		},
		{
			name: "research request valid",
			payload: &ResearchRequest{
				Header: header,
				Requirements: Requirements{
					BudgetMax: f64(500000),
					Bedrooms:  i(3),
					Bathrooms: i(2),
					Location:  "Austin, TX",
				},
			},
		},
		{
			name:    "probe request needs address or link",
			payload: &ProbeRequest{Header: header, Listing: Listing{}},
			wantErr: true,
		},
		{
			name:    "probe request with link only",
			payload: &ProbeRequest{Header: header, Listing: Listing{Link: "https://example.com/l/1"}},
		},
		{
			name:    "negotiate request with no reports is valid",
			payload: &NegotiateRequest{Header: header},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseReplyRoutesBySubject(t *testing.T) {
	reply := &GeocodeReply{
		Header:        Header{CorrelationID: "corr-9", SessionID: "sess-9"},
		PropertyIndex: 1,
		Coordinates:   &Coordinates{Longitude: -97.74, Latitude: 30.27},
	}
	baseMsg := message.NewBaseMessage(reply.Schema(), reply, "geocoder")
	data, err := json.Marshal(baseMsg)
	require.NoError(t, err)

	parsed, err := ParseReply(ReplySubject(KindGeocode), data)
	require.NoError(t, err)

	assert.Equal(t, KindGeocode, parsed.ReplyKind())
	assert.Equal(t, "corr-9", parsed.ReplyHeader().CorrelationID)
	assert.Empty(t, parsed.FailureMessage())

	geocode, ok := parsed.(*GeocodeReply)
	require.True(t, ok)
	assert.Equal(t, 1, geocode.PropertyIndex)
	require.NotNil(t, geocode.Coordinates)
	assert.InDelta(t, 30.27, geocode.Coordinates.Latitude, 0.001)
}

func TestParseReplyFailureCarriesError(t *testing.T) {
	reply := &ProbeReply{
		Header:        Header{CorrelationID: "corr-2", SessionID: "sess-2"},
		PropertyIndex: 0,
		Error:         "listing page unreachable",
	}
	baseMsg := message.NewBaseMessage(reply.Schema(), reply, "prober")
	data, err := json.Marshal(baseMsg)
	require.NoError(t, err)

	parsed, err := ParseReply(ReplySubject(KindProbe), data)
	require.NoError(t, err)
	assert.Equal(t, "listing page unreachable", parsed.FailureMessage())
}

func TestParseReplyRejectsBadSubject(t *testing.T) {
	_, err := ParseReply("estate.request.geocode", []byte(`{}`))
	assert.Error(t, err)

	_, err = ParseReply("estate.reply.unknown-kind", []byte(`{}`))
	assert.Error(t, err)
}

func TestParseReplyRejectsMissingCorrelation(t *testing.T) {
	// A reply without a correlation id can only come from a buggy worker;
	// the envelope is built by hand because marshaling refuses invalid
	// payloads before they reach the wire.
	data := []byte(`{
		"id": "msg-1",
		"type": {"domain": "estate", "category": "intern-reply", "version": "v1"},
		"payload": {"session_id": "sess-3", "answer": "yes"},
		"meta": {"created_at": 0, "received_at": 0, "source": "intern"}
	}`)

	_, err := ParseReply(ReplySubject(KindIntern), data)
	assert.Error(t, err)
}

func TestPayloadMarshalRoundTrip(t *testing.T) {
	original := &ScopingReply{
		Header:        Header{CorrelationID: "corr-5", SessionID: "sess-5"},
		IsComplete:    true,
		CommunityName: "Mueller",
	}

	var payload message.Payload = original
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	var decoded ScopingReply
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, &decoded)
}

func TestKindFromReplySubject(t *testing.T) {
	for _, k := range AllKinds {
		got, err := KindFromReplySubject(ReplySubject(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}
