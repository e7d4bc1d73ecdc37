package estate

import (
	"encoding/json"
	"fmt"
)

// ParsePayload unwraps a BaseMessage envelope and unmarshals its payload
// into T. All estate traffic rides the envelope, so consumers parse with
// this instead of unmarshaling raw bytes.
func ParsePayload[T any](data []byte) (*T, error) {
	var rawMsg struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &rawMsg); err != nil {
		return nil, fmt.Errorf("unmarshal BaseMessage: %w", err)
	}
	if len(rawMsg.Payload) == 0 {
		return nil, fmt.Errorf("empty payload in BaseMessage")
	}

	var result T
	if err := json.Unmarshal(rawMsg.Payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload into %T: %w", result, err)
	}
	return &result, nil
}

// ParseReply parses a worker reply from its subject and envelope bytes.
// The subject picks the concrete payload type.
func ParseReply(subject string, data []byte) (Reply, error) {
	kind, err := KindFromReplySubject(subject)
	if err != nil {
		return nil, err
	}

	var reply Reply
	switch kind {
	case KindScoping:
		reply, err = parseReplyAs[ScopingReply](data)
	case KindResearch:
		reply, err = parseReplyAs[ResearchReply](data)
	case KindIntern:
		reply, err = parseReplyAs[InternReply](data)
	case KindGeocode:
		reply, err = parseReplyAs[GeocodeReply](data)
	case KindDiscovery:
		reply, err = parseReplyAs[DiscoveryReply](data)
	case KindCommunity:
		reply, err = parseReplyAs[CommunityReply](data)
	case KindProbe:
		reply, err = parseReplyAs[ProbeReply](data)
	case KindNegotiate:
		reply, err = parseReplyAs[NegotiateReply](data)
	default:
		return nil, fmt.Errorf("no reply type for kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s reply: %w", kind, err)
	}
	if err := reply.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s reply: %w", kind, err)
	}
	return reply, nil
}

func parseReplyAs[T any, PT interface {
	*T
	Reply
}](data []byte) (Reply, error) {
	parsed, err := ParsePayload[T](data)
	if err != nil {
		return nil, err
	}
	return PT(parsed), nil
}
