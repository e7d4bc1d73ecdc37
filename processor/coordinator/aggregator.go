package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/estatesearch/estatesearch/estate"
)

// Aggregator applies user turns and worker replies to session state. It is
// the single writer for any given session; the component calls it with the
// session lock held, so no internal locking happens here.
type Aggregator struct {
	cfg        *Config
	dispatcher *Dispatcher
	assembler  *Assembler
	notifier   *Notifier
	logger     *slog.Logger

	now func() time.Time
}

// NewAggregator wires the aggregator over its collaborators.
func NewAggregator(cfg *Config, dispatcher *Dispatcher, assembler *Assembler, notifier *Notifier, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		cfg:        cfg,
		dispatcher: dispatcher,
		assembler:  assembler,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// HandleUserMessage routes one inbound user turn. A turn arriving while the
// previous search is still in flight is acknowledged as in-progress rather
// than interleaved with the outstanding work.
func (a *Aggregator) HandleUserMessage(ctx context.Context, sess *Session, content string) {
	sess.Touch(a.now())

	switch sess.Phase {
	case PhaseSearching, PhaseEnriching:
		if err := a.notifier.Status(ctx, sess, "Still working on your last request, one moment."); err != nil {
			a.logger.Warn("Failed to send in-progress notice", "session_id", sess.ID, "error", err)
		}
		return
	}

	if sess.HasOutstanding(estate.KindScoping, sessionLevel) || sess.HasOutstanding(estate.KindIntern, sessionLevel) {
		if err := a.notifier.Status(ctx, sess, "Still working on your last message, one moment."); err != nil {
			a.logger.Warn("Failed to send in-progress notice", "session_id", sess.ID, "error", err)
		}
		return
	}

	known := sess.Requirements
	req := &estate.ScopingRequest{
		UserMessage: content,
		Known:       &known,
	}
	if err := a.dispatcher.Dispatch(ctx, sess, estate.KindScoping, sessionLevel, req); err != nil {
		a.logger.Error("Scoping dispatch failed", "session_id", sess.ID, "error", err)
		if err := a.notifier.Error(ctx, sess, "I couldn't process that message. Please try again."); err != nil {
			a.logger.Warn("Failed to send error notice", "session_id", sess.ID, "error", err)
		}
	}
}

// sessionLevel is the property index for requests targeting the whole
// session rather than one property.
const sessionLevel = -1

// Apply consumes one worker reply. A reply whose correlation id matches no
// outstanding request is a duplicate delivery and mutates nothing. After
// every apply the completion predicate is re-evaluated.
func (a *Aggregator) Apply(ctx context.Context, sess *Session, reply estate.Reply) {
	hdr := reply.ReplyHeader()
	kind := reply.ReplyKind()

	out, ok := sess.Resolve(hdr.CorrelationID)
	if !ok {
		metricDuplicateReplies.WithLabelValues(string(kind)).Inc()
		a.logger.Debug("Ignoring duplicate or stale reply",
			"session_id", sess.ID,
			"kind", kind,
			"correlation_id", hdr.CorrelationID)
		return
	}

	sess.Touch(a.now())
	outcome := outcomeOK
	if reply.FailureMessage() != "" {
		outcome = outcomeFailed
	}
	metricReplies.WithLabelValues(string(kind), outcome).Inc()

	switch r := reply.(type) {
	case *estate.ScopingReply:
		a.applyScoping(ctx, sess, r)
	case *estate.ResearchReply:
		a.applyResearch(ctx, sess, r)
	case *estate.InternReply:
		a.applyIntern(ctx, sess, r)
	case *estate.GeocodeReply:
		a.applyGeocode(ctx, sess, out, r)
	case *estate.DiscoveryReply:
		a.applyDiscovery(sess, out, r)
	case *estate.CommunityReply:
		a.applyCommunity(sess, r)
	case *estate.ProbeReply:
		a.applyProbe(sess, out, r)
	case *estate.NegotiateReply:
		a.applyNegotiate(sess, r)
	default:
		a.logger.Error("Reply type without an apply path",
			"session_id", sess.ID,
			"kind", kind)
	}

	a.maybeFinalize(ctx, sess)
}

// applyScoping consumes the scoping verdict: clarify, answer a general
// question, or start the search.
func (a *Aggregator) applyScoping(ctx context.Context, sess *Session, r *estate.ScopingReply) {
	if r.Error != "" {
		a.logger.Warn("Scoping worker failed", "session_id", sess.ID, "error", r.Error)
		a.notify(ctx, sess, a.notifier.Error, "I couldn't interpret that message. Please try again.")
		return
	}

	if r.IsGeneralQuestion {
		question := r.GeneralQuestion
		req := &estate.InternRequest{Question: question, Location: sess.Requirements.Location}
		if err := a.dispatcher.Dispatch(ctx, sess, estate.KindIntern, sessionLevel, req); err != nil {
			a.logger.Error("Intern dispatch failed", "session_id", sess.ID, "error", err)
			a.notify(ctx, sess, a.notifier.Error, "I couldn't look that up right now. Please try again.")
		}
		return
	}

	sess.Requirements.Merge(r.Requirements)
	if r.CommunityName != "" {
		sess.CommunityName = r.CommunityName
	}

	if !r.IsComplete || !sess.Requirements.Complete() {
		sess.Phase = PhaseCollecting
		msg := r.AgentMessage
		if msg == "" {
			msg = fmt.Sprintf("I still need a few details: %v.", sess.Requirements.Missing())
		}
		a.notify(ctx, sess, a.notifier.Result, msg)
		return
	}

	sess.BeginSearchTurn(a.now())
	a.notify(ctx, sess, a.notifier.Status,
		fmt.Sprintf("Searching for properties (%s)...", sess.Requirements.Summary()))

	researchReq := &estate.ResearchRequest{
		Requirements: sess.Requirements,
		MaxResults:   a.cfg.MaxProperties,
	}
	if err := a.dispatcher.Dispatch(ctx, sess, estate.KindResearch, sessionLevel, researchReq); err != nil {
		a.logger.Error("Research dispatch failed", "session_id", sess.ID, "error", err)
		a.notify(ctx, sess, a.notifier.Error, "The property search is unavailable right now. Please try again later.")
		sess.ClearOutstanding()
		sess.MarkFinalized()
		return
	}

	if sess.CommunityName != "" && a.cfg.KindEnabled(estate.KindCommunity) {
		communityReq := &estate.CommunityRequest{Location: sess.CommunityName}
		if err := a.dispatcher.Dispatch(ctx, sess, estate.KindCommunity, sessionLevel, communityReq); err != nil {
			a.logger.Warn("Community dispatch failed, report will be absent",
				"session_id", sess.ID, "error", err)
		}
	}
}

// applyResearch adopts the candidate listings and fans out enrichment, or
// ends the turn on the no-results path.
func (a *Aggregator) applyResearch(ctx context.Context, sess *Session, r *estate.ResearchReply) {
	if sess.Phase != PhaseSearching {
		a.logger.Warn("Research reply outside SEARCHING, dropping",
			"session_id", sess.ID, "phase", sess.Phase)
		return
	}

	if r.Error != "" || len(r.Listings) == 0 {
		if r.Error != "" {
			a.logger.Warn("Research worker failed", "session_id", sess.ID, "error", r.Error)
		}
		a.notify(ctx, sess, a.notifier.Result, a.assembler.RenderNoResults(&sess.Requirements))
		sess.ClearOutstanding()
		sess.MarkFinalized()
		return
	}

	listings := r.Listings
	if len(listings) > a.cfg.MaxProperties {
		listings = listings[:a.cfg.MaxProperties]
	}
	sess.AdoptListings(listings, a.now().Add(a.cfg.EnrichmentWindow))

	a.notify(ctx, sess, a.notifier.Status,
		fmt.Sprintf("Found %d properties, gathering location details...", len(listings)))

	for _, rec := range sess.Properties {
		if a.cfg.KindEnabled(estate.KindGeocode) {
			req := &estate.GeocodeRequest{PropertyIndex: rec.Index, Address: rec.Listing.Address}
			if err := a.dispatcher.Dispatch(ctx, sess, estate.KindGeocode, rec.Index, req); err != nil {
				a.logger.Warn("Geocode dispatch failed", "session_id", sess.ID,
					"property_index", rec.Index, "error", err)
				rec.Fail(estate.KindGeocode, err.Error())
			}
		}
		if a.cfg.KindEnabled(estate.KindProbe) {
			req := &estate.ProbeRequest{PropertyIndex: rec.Index, Listing: rec.Listing}
			if err := a.dispatcher.Dispatch(ctx, sess, estate.KindProbe, rec.Index, req); err != nil {
				a.logger.Warn("Probe dispatch failed", "session_id", sess.ID,
					"property_index", rec.Index, "error", err)
				rec.Fail(estate.KindProbe, err.Error())
			}
		}
	}
}

// applyIntern delivers the general-question answer; the turn ends without a
// property search.
func (a *Aggregator) applyIntern(ctx context.Context, sess *Session, r *estate.InternReply) {
	if r.Error != "" {
		a.logger.Warn("Intern worker failed", "session_id", sess.ID, "error", r.Error)
		a.notify(ctx, sess, a.notifier.Error, "I couldn't find an answer to that. Please try again.")
		return
	}
	a.notify(ctx, sess, a.notifier.Result, r.Answer)
}

// applyGeocode records coordinates and chains the discovery request for the
// property. A failed geocode leaves the property unmapped and undiscovered.
func (a *Aggregator) applyGeocode(ctx context.Context, sess *Session, out *OutstandingRequest, r *estate.GeocodeReply) {
	rec, err := sess.Record(out.PropertyIndex)
	if err != nil {
		a.logger.Error("Geocode reply for unknown property",
			"session_id", sess.ID, "property_index", out.PropertyIndex, "error", err)
		return
	}

	if r.Error != "" || r.Coordinates == nil {
		msg := r.Error
		if msg == "" {
			msg = "no coordinates returned"
		}
		rec.Fail(estate.KindGeocode, msg)
		return
	}

	rec.Coordinates = r.Coordinates
	rec.FullAddress = r.FullAddress

	if a.cfg.KindEnabled(estate.KindDiscovery) {
		req := &estate.DiscoveryRequest{PropertyIndex: rec.Index, Coordinates: *r.Coordinates}
		if err := a.dispatcher.Dispatch(ctx, sess, estate.KindDiscovery, rec.Index, req); err != nil {
			a.logger.Warn("Discovery dispatch failed", "session_id", sess.ID,
				"property_index", rec.Index, "error", err)
			rec.Fail(estate.KindDiscovery, err.Error())
		}
	}
}

func (a *Aggregator) applyDiscovery(sess *Session, out *OutstandingRequest, r *estate.DiscoveryReply) {
	rec, err := sess.Record(out.PropertyIndex)
	if err != nil {
		a.logger.Error("Discovery reply for unknown property",
			"session_id", sess.ID, "property_index", out.PropertyIndex, "error", err)
		return
	}
	if r.Error != "" {
		rec.Fail(estate.KindDiscovery, r.Error)
		return
	}
	rec.POIs = r.POIs
}

func (a *Aggregator) applyCommunity(sess *Session, r *estate.CommunityReply) {
	if r.Error != "" || r.Report == nil {
		a.logger.Warn("Community report absent", "session_id", sess.ID, "error", r.Error)
		return
	}
	sess.Community = r.Report
}

func (a *Aggregator) applyProbe(sess *Session, out *OutstandingRequest, r *estate.ProbeReply) {
	rec, err := sess.Record(out.PropertyIndex)
	if err != nil {
		a.logger.Error("Probe reply for unknown property",
			"session_id", sess.ID, "property_index", out.PropertyIndex, "error", err)
		return
	}
	if r.Error != "" || r.Report == nil {
		msg := r.Error
		if msg == "" {
			msg = "no report returned"
		}
		rec.Fail(estate.KindProbe, msg)
		return
	}
	rec.Leverage = r.Report
}

func (a *Aggregator) applyNegotiate(sess *Session, r *estate.NegotiateReply) {
	if r.Error != "" || r.Advice == nil {
		a.logger.Warn("Negotiation advice absent", "session_id", sess.ID, "error", r.Error)
		return
	}
	sess.Advice = r.Advice
}

// ExpireOverdue resolves outstanding requests that outlived their deadline,
// then re-evaluates the turn. During ENRICHING the session-wide enrichment
// deadline governs: once it passes, every outstanding request fails and the
// turn finalizes with whatever arrived. In every other phase each request
// carries its own deadline, so a silent worker can never strand the session.
// Called by the sweeper with the session lock held.
func (a *Aggregator) ExpireOverdue(ctx context.Context, sess *Session, now time.Time) {
	if sess.Phase == PhaseEnriching {
		if now.Before(sess.EnrichmentDeadline) {
			return
		}

		for correlationID, out := range sess.Outstanding {
			sess.Resolve(correlationID)
			metricExpiredRequests.WithLabelValues(string(out.Kind)).Inc()
			a.logger.Info("Enrichment request expired",
				"session_id", sess.ID,
				"kind", out.Kind,
				"property_index", out.PropertyIndex,
				"dispatched_at", out.DispatchedAt)
			if out.PropertyIndex >= 0 {
				if rec, err := sess.Record(out.PropertyIndex); err == nil {
					rec.Fail(out.Kind, "enrichment window expired")
				}
			}
		}

		a.maybeFinalize(ctx, sess)
		return
	}

	for _, out := range sess.OverdueOutstanding(now) {
		if _, ok := sess.Resolve(out.CorrelationID); !ok {
			continue
		}
		metricExpiredRequests.WithLabelValues(string(out.Kind)).Inc()
		a.logger.Warn("Worker request expired without a reply",
			"session_id", sess.ID,
			"kind", out.Kind,
			"correlation_id", out.CorrelationID,
			"dispatched_at", out.DispatchedAt)
		a.expireRequest(ctx, sess, out)
	}
}

// expireRequest resolves one overdue request outside the enrichment phase.
// Research expiry ends the turn on the no-results path; scoping and intern
// expiry return the session to requirements gathering so the next user turn
// is processed instead of refused as in-progress.
func (a *Aggregator) expireRequest(ctx context.Context, sess *Session, out *OutstandingRequest) {
	switch out.Kind {
	case estate.KindResearch:
		a.notify(ctx, sess, a.notifier.Result, a.assembler.RenderNoResults(&sess.Requirements))
		sess.ClearOutstanding()
		sess.MarkFinalized()
	case estate.KindScoping, estate.KindIntern:
		sess.Phase = PhaseCollecting
		a.notify(ctx, sess, a.notifier.Error, "That took too long to process. Please send your message again.")
	default:
		// optional session-level extras (community) just go absent
	}
}

// maybeFinalize chains the negotiate request once probes settle, then fires
// finalization exactly once when every outstanding request has resolved.
func (a *Aggregator) maybeFinalize(ctx context.Context, sess *Session) {
	if sess.Phase != PhaseEnriching {
		return
	}

	if sess.OutstandingOfKind(estate.KindProbe) == 0 && !sess.NegotiateDispatched() && a.cfg.KindEnabled(estate.KindNegotiate) {
		sess.MarkNegotiateDispatched()
		reports := sess.LeverageReports()
		if len(reports) > 0 && a.now().Before(sess.EnrichmentDeadline) {
			req := &estate.NegotiateRequest{Reports: reports}
			if err := a.dispatcher.Dispatch(ctx, sess, estate.KindNegotiate, sessionLevel, req); err != nil {
				a.logger.Warn("Negotiate dispatch failed, advice will be absent",
					"session_id", sess.ID, "error", err)
			}
		}
	}

	if !sess.EnrichmentSettled() {
		return
	}
	if !sess.MarkFinalized() {
		return
	}

	resp := a.assembler.Build(sess, a.now())
	content := a.assembler.Render(resp)
	a.notify(ctx, sess, a.notifier.Result, content)

	metricFinalizations.Inc()
	a.logger.Info("Search turn finalized",
		"session_id", sess.ID,
		"properties", len(resp.Summaries),
		"has_map", resp.MapURL != "",
		"has_community", resp.Community != nil,
		"has_advice", resp.Advice != nil)
}

// notify publishes through one of the notifier's methods, logging failures
// instead of propagating them. A lost user message never corrupts state.
func (a *Aggregator) notify(ctx context.Context, sess *Session, send func(context.Context, *Session, string) error, content string) {
	if err := send(ctx, sess, content); err != nil {
		a.logger.Error("Failed to publish user response", "session_id", sess.ID, "error", err)
	}
}
