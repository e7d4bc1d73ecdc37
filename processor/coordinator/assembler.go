package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semstreams/agentic"
	"github.com/google/uuid"

	"github.com/estatesearch/estatesearch/estate"
)

// PropertySummary is one property's share of the composite response, built
// from whatever enrichment landed before completion fired.
type PropertySummary struct {
	Index       int                    `json:"index"`
	Listing     estate.Listing         `json:"listing"`
	Coordinates *estate.Coordinates    `json:"coordinates,omitempty"`
	FullAddress string                 `json:"full_address,omitempty"`
	POIs        []estate.POI           `json:"pois,omitempty"`
	Leverage    *estate.LeverageReport `json:"leverage,omitempty"`
}

// CompositeResponse is the assembled answer for one finalized turn.
// Immutable once built; it consumes only state the aggregator committed
// before completion fired.
type CompositeResponse struct {
	SessionID   string                    `json:"session_id"`
	Summaries   []PropertySummary         `json:"summaries"`
	MapURL      string                    `json:"map_url,omitempty"`
	Community   *estate.CommunityReport   `json:"community,omitempty"`
	Advice      *estate.NegotiationAdvice `json:"advice,omitempty"`
	AssembledAt time.Time                 `json:"assembled_at"`
}

// Assembler builds composite responses and renders them for the user
// channel. It never dispatches or waits; input is committed session state.
type Assembler struct {
	composer *MapComposer
}

// NewAssembler wires an assembler over a map composer.
func NewAssembler(composer *MapComposer) *Assembler {
	return &Assembler{composer: composer}
}

// Build assembles the composite response for a session whose completion
// predicate just fired. Summaries are in index order; enrichment fields are
// present-or-absent per what arrived.
func (a *Assembler) Build(sess *Session, now time.Time) *CompositeResponse {
	summaries := make([]PropertySummary, len(sess.Properties))
	for i, rec := range sess.Properties {
		summaries[i] = PropertySummary{
			Index:       rec.Index,
			Listing:     rec.Listing,
			Coordinates: rec.Coordinates,
			FullAddress: rec.FullAddress,
			POIs:        rec.POIs,
			Leverage:    rec.Leverage,
		}
	}

	return &CompositeResponse{
		SessionID:   sess.ID,
		Summaries:   summaries,
		MapURL:      a.composer.Compose(sess.Properties),
		Community:   sess.Community,
		Advice:      sess.Advice,
		AssembledAt: now,
	}
}

// Render turns a composite response into the markdown shown to the user.
func (a *Assembler) Render(resp *CompositeResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Property Search Results\n\n")
	fmt.Fprintf(&b, "Found **%d** properties matching your criteria.\n\n", len(resp.Summaries))

	if resp.MapURL != "" {
		b.WriteString("## Map View\n\n")
		fmt.Fprintf(&b, "![Properties Map](%s)\n\n", resp.MapURL)
		b.WriteString("*Numbered markers correspond to properties listed below*\n\n")
	}

	for _, s := range resp.Summaries {
		fmt.Fprintf(&b, "---\n\n## %d. %s\n\n", s.Index+1, s.Listing.Address)
		if s.Listing.Price > 0 {
			fmt.Fprintf(&b, "**Price:** $%.0f\n\n", s.Listing.Price)
		}
		if s.Listing.Bedrooms > 0 || s.Listing.Bathrooms > 0 {
			fmt.Fprintf(&b, "**Beds/Baths:** %d/%d\n\n", s.Listing.Bedrooms, s.Listing.Bathrooms)
		}
		if s.Listing.ImageURL != "" {
			fmt.Fprintf(&b, "![Listing photo](%s)\n\n", s.Listing.ImageURL)
		}
		if s.Listing.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", s.Listing.Summary)
		}
		if s.Listing.Link != "" {
			fmt.Fprintf(&b, "[View listing](%s)\n\n", s.Listing.Link)
		}
		if len(s.POIs) > 0 {
			b.WriteString("**Nearby:**\n")
			for _, poi := range s.POIs {
				if poi.DistanceMeters > 0 {
					fmt.Fprintf(&b, "- %s (%s, %.0fm)\n", poi.Name, poi.Category, poi.DistanceMeters)
				} else {
					fmt.Fprintf(&b, "- %s (%s)\n", poi.Name, poi.Category)
				}
			}
			b.WriteString("\n")
		}
		if s.Leverage != nil {
			fmt.Fprintf(&b, "**Negotiation leverage:** %.1f/10\n", s.Leverage.LeverageScore)
			for _, f := range s.Leverage.Findings {
				fmt.Fprintf(&b, "- [%s] %s\n", f.Category, f.Detail)
			}
			b.WriteString("\n")
		}
	}

	if resp.Community != nil {
		c := resp.Community
		fmt.Fprintf(&b, "---\n\n## Community: %s\n\n", c.Location)
		fmt.Fprintf(&b, "**Overall:** %.1f/10", c.OverallScore)
		if c.OverallExplanation != "" {
			fmt.Fprintf(&b, " — %s", c.OverallExplanation)
		}
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "**Safety:** %.1f/10 · **Schools:** %.1f/10\n\n", c.SafetyScore, c.SchoolRating)
		if c.HousingPricePerSquareFoot > 0 {
			fmt.Fprintf(&b, "**Price per sqft:** $%.0f\n\n", c.HousingPricePerSquareFoot)
		}
	}

	if resp.Advice != nil {
		fmt.Fprintf(&b, "---\n\n## Negotiation Strategy\n\n%s\n\n", resp.Advice.Strategy)
		for _, tp := range resp.Advice.TalkingPoints {
			fmt.Fprintf(&b, "- %s\n", tp)
		}
		if resp.Advice.SuggestedOffer != "" {
			fmt.Fprintf(&b, "\n**Suggested offer:** %s\n", resp.Advice.SuggestedOffer)
		}
	}

	return b.String()
}

// RenderNoResults is the terminal message for an empty or failed search.
func (a *Assembler) RenderNoResults(reqs *estate.Requirements) string {
	return fmt.Sprintf("No properties matched your criteria (%s). Try widening the budget or location.", reqs.Summary())
}

// Notifier publishes user-facing responses on the user channel.
type Notifier struct {
	pub    publisher
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier wires a notifier over the publish seam.
func NewNotifier(pub publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{pub: pub, logger: logger, now: time.Now}
}

// Result sends a final result to the session's user channel.
func (n *Notifier) Result(ctx context.Context, sess *Session, content string) error {
	return n.send(ctx, sess, "result", content)
}

// Status sends an interim progress notice.
func (n *Notifier) Status(ctx context.Context, sess *Session, content string) error {
	return n.send(ctx, sess, "status", content)
}

// Error sends a user-visible error notice.
func (n *Notifier) Error(ctx context.Context, sess *Session, content string) error {
	return n.send(ctx, sess, "error", content)
}

func (n *Notifier) send(ctx context.Context, sess *Session, kind string, content string) error {
	responseType := agentic.ResponseTypeResult
	switch kind {
	case "status":
		responseType = agentic.ResponseTypeStatus
	case "error":
		responseType = agentic.ResponseTypeError
	}

	response := agentic.UserResponse{
		ResponseID:  uuid.New().String(),
		ChannelType: sess.ChannelType,
		ChannelID:   sess.ChannelID,
		UserID:      sess.UserID,
		Type:        responseType,
		Content:     content,
		Timestamp:   n.now(),
	}

	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal user response: %w", err)
	}

	subject := estate.UserResponseSubject(sess.ChannelType, sess.ChannelID)
	if err := n.pub.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish user response to %s: %w", subject, err)
	}

	n.logger.Debug("Published user response",
		"session_id", sess.ID,
		"type", responseType,
		"subject", subject)
	return nil
}
