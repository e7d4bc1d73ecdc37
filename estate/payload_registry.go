package estate

import (
	"errors"
	"fmt"

	"github.com/c360studio/semstreams/payloadregistry"
)

// RegisterPayloads registers every estate request and reply payload with the
// supplied registry. Binaries call this once at bootstrap, after the builtin
// payloads, so every component sharing the registry can deserialize worker
// traffic. Returns aggregated errors via errors.Join so a misconfigured
// deployment sees every collision on a single boot.
func RegisterPayloads(reg *payloadregistry.Registry) error {
	registrations := []*payloadregistry.Registration{
		{Domain: "estate", Category: "scoping-request", Version: "v1", Description: "Interpret a user turn against collected requirements", Factory: func() any { return &ScopingRequest{} }},
		{Domain: "estate", Category: "scoping-reply", Version: "v1", Description: "Scoping verdict for a user turn", Factory: func() any { return &ScopingReply{} }},
		{Domain: "estate", Category: "research-request", Version: "v1", Description: "Find candidate listings for complete requirements", Factory: func() any { return &ResearchRequest{} }},
		{Domain: "estate", Category: "research-reply", Version: "v1", Description: "Candidate listings for a search", Factory: func() any { return &ResearchReply{} }},
		{Domain: "estate", Category: "intern-request", Version: "v1", Description: "Answer a general area question", Factory: func() any { return &InternRequest{} }},
		{Domain: "estate", Category: "intern-reply", Version: "v1", Description: "Answer to a general area question", Factory: func() any { return &InternReply{} }},
		{Domain: "estate", Category: "geocode-request", Version: "v1", Description: "Geocode one property address", Factory: func() any { return &GeocodeRequest{} }},
		{Domain: "estate", Category: "geocode-reply", Version: "v1", Description: "Coordinates for one property address", Factory: func() any { return &GeocodeReply{} }},
		{Domain: "estate", Category: "discovery-request", Version: "v1", Description: "Find points of interest near one property", Factory: func() any { return &DiscoveryRequest{} }},
		{Domain: "estate", Category: "discovery-reply", Version: "v1", Description: "Points of interest near one property", Factory: func() any { return &DiscoveryReply{} }},
		{Domain: "estate", Category: "community-request", Version: "v1", Description: "Score the community a search targets", Factory: func() any { return &CommunityRequest{} }},
		{Domain: "estate", Category: "community-reply", Version: "v1", Description: "Community report for a search location", Factory: func() any { return &CommunityReply{} }},
		{Domain: "estate", Category: "probe-request", Version: "v1", Description: "Gather negotiation leverage on one listing", Factory: func() any { return &ProbeRequest{} }},
		{Domain: "estate", Category: "probe-reply", Version: "v1", Description: "Leverage report for one listing", Factory: func() any { return &ProbeReply{} }},
		{Domain: "estate", Category: "negotiate-request", Version: "v1", Description: "Synthesize leverage reports into advice", Factory: func() any { return &NegotiateRequest{} }},
		{Domain: "estate", Category: "negotiate-reply", Version: "v1", Description: "Negotiation advice for a session", Factory: func() any { return &NegotiateReply{} }},
	}

	var errs []error
	for _, r := range registrations {
		if err := reg.Register(r); err != nil {
			errs = append(errs, fmt.Errorf("register %s.%s.%s: %w", r.Domain, r.Category, r.Version, err))
		}
	}
	return errors.Join(errs...)
}
