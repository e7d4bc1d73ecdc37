package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estatesearch/estatesearch/estate"
)

func newTestSession() *Session {
	return NewSession(SessionID("cli", "c1"), "cli", "c1", "u1", time.Now())
}

func TestAdoptListingsAssignsPositionalIndices(t *testing.T) {
	sess := newTestSession()
	sess.BeginSearchTurn(time.Now())
	sess.AdoptListings([]estate.Listing{
		{Address: "A"}, {Address: "B"}, {Address: "C"},
	}, time.Now().Add(time.Minute))

	require.Len(t, sess.Properties, 3)
	for i, rec := range sess.Properties {
		assert.Equal(t, i, rec.Index)
	}
	assert.Equal(t, PhaseEnriching, sess.Phase)

	_, err := sess.Record(3)
	assert.Error(t, err)
	_, err = sess.Record(-1)
	assert.Error(t, err)
}

func TestResolveDetectsDuplicates(t *testing.T) {
	sess := newTestSession()
	sess.TrackOutstanding(&OutstandingRequest{
		CorrelationID: "corr-1",
		Kind:          estate.KindGeocode,
		PropertyIndex: 0,
		DispatchedAt:  time.Now(),
	})

	out, ok := sess.Resolve("corr-1")
	require.True(t, ok)
	assert.Equal(t, estate.KindGeocode, out.Kind)

	_, ok = sess.Resolve("corr-1")
	assert.False(t, ok)
	_, ok = sess.Resolve("never-dispatched")
	assert.False(t, ok)
}

func TestOverdueOutstanding(t *testing.T) {
	sess := newTestSession()
	now := time.Now()
	sess.TrackOutstanding(&OutstandingRequest{
		CorrelationID: "stale", Kind: estate.KindScoping, PropertyIndex: sessionLevel,
		ExpiresAt: now.Add(-time.Second),
	})
	sess.TrackOutstanding(&OutstandingRequest{
		CorrelationID: "live", Kind: estate.KindResearch, PropertyIndex: sessionLevel,
		ExpiresAt: now.Add(time.Minute),
	})

	overdue := sess.OverdueOutstanding(now)
	require.Len(t, overdue, 1)
	assert.Equal(t, "stale", overdue[0].CorrelationID)
}

func TestMarkFinalizedFiresOnce(t *testing.T) {
	sess := newTestSession()
	sess.BeginSearchTurn(time.Now())
	sess.AdoptListings([]estate.Listing{{Address: "A"}}, time.Now().Add(time.Minute))

	require.True(t, sess.EnrichmentSettled())
	assert.True(t, sess.MarkFinalized())
	assert.False(t, sess.MarkFinalized())
	assert.Equal(t, PhaseFinalized, sess.Phase)

	// a new turn re-arms the guard
	sess.BeginSearchTurn(time.Now())
	sess.AdoptListings([]estate.Listing{{Address: "B"}}, time.Now().Add(time.Minute))
	assert.True(t, sess.MarkFinalized())
}

func TestEnrichmentSettledRequiresEnrichingPhase(t *testing.T) {
	sess := newTestSession()
	assert.False(t, sess.EnrichmentSettled())

	sess.BeginSearchTurn(time.Now())
	assert.False(t, sess.EnrichmentSettled())

	sess.AdoptListings([]estate.Listing{{Address: "A"}}, time.Now().Add(time.Minute))
	assert.True(t, sess.EnrichmentSettled())

	sess.TrackOutstanding(&OutstandingRequest{CorrelationID: "c", Kind: estate.KindProbe, PropertyIndex: 0})
	assert.False(t, sess.EnrichmentSettled())

	sess.Resolve("c")
	assert.True(t, sess.EnrichmentSettled())
}

func TestBeginSearchTurnKeepsRequirementsOnly(t *testing.T) {
	sess := newTestSession()
	sess.Requirements = completeRequirements()
	sess.CommunityName = "Mueller"
	sess.BeginSearchTurn(time.Now())
	sess.AdoptListings([]estate.Listing{{Address: "A"}}, time.Now().Add(time.Minute))
	sess.Community = &estate.CommunityReport{Location: "Mueller"}
	sess.Advice = &estate.NegotiationAdvice{Strategy: "s"}
	sess.MarkNegotiateDispatched()
	sess.MarkDispatched(estate.KindGeocode, 0)
	sess.TrackOutstanding(&OutstandingRequest{CorrelationID: "c", Kind: estate.KindGeocode, PropertyIndex: 0})
	sess.MarkFinalized()

	sess.BeginSearchTurn(time.Now())

	assert.True(t, sess.Requirements.Complete())
	assert.Empty(t, sess.Properties)
	assert.Empty(t, sess.Outstanding)
	assert.Nil(t, sess.Community)
	assert.Nil(t, sess.Advice)
	assert.False(t, sess.NegotiateDispatched())
	assert.False(t, sess.AlreadyDispatched(estate.KindGeocode, 0))
	assert.Equal(t, PhaseSearching, sess.Phase)
}

func TestLeverageReportsInPropertyOrder(t *testing.T) {
	sess := newTestSession()
	sess.BeginSearchTurn(time.Now())
	sess.AdoptListings([]estate.Listing{{Address: "A"}, {Address: "B"}, {Address: "C"}}, time.Now().Add(time.Minute))

	sess.Properties[2].Leverage = &estate.LeverageReport{Summary: "third"}
	sess.Properties[0].Leverage = &estate.LeverageReport{Summary: "first"}

	reports := sess.LeverageReports()
	require.Len(t, reports, 2)
	assert.Equal(t, "first", reports[0].Summary)
	assert.Equal(t, "third", reports[1].Summary)
}

func TestStoreSweepSkipsBusySessions(t *testing.T) {
	store := NewSessionStore()
	base := time.Now()

	idle, created := store.GetOrCreate("cli", "idle", "u1", base)
	require.True(t, created)

	busy, created := store.GetOrCreate("cli", "busy", "u2", base)
	require.True(t, created)
	busy.TrackOutstanding(&OutstandingRequest{CorrelationID: "c", Kind: estate.KindResearch, PropertyIndex: sessionLevel})

	fresh, created := store.GetOrCreate("cli", "fresh", "u3", base)
	require.True(t, created)
	fresh.Touch(base.Add(25 * time.Minute))

	evicted := store.Sweep(base.Add(30*time.Minute), 10*time.Minute)
	assert.Equal(t, []string{idle.ID}, evicted)
	assert.Nil(t, store.Get(idle.ID))
	assert.NotNil(t, store.Get(busy.ID))
	assert.NotNil(t, store.Get(fresh.ID))
	assert.Equal(t, 2, store.Len())
}

func TestStoreReturnsSameSessionPerChannel(t *testing.T) {
	store := NewSessionStore()
	now := time.Now()

	first, created := store.GetOrCreate("telegram", "42", "u1", now)
	require.True(t, created)
	second, created := store.GetOrCreate("telegram", "42", "u1", now)
	assert.False(t, created)
	assert.Same(t, first, second)

	other, created := store.GetOrCreate("cli", "42", "u1", now)
	require.True(t, created)
	assert.NotSame(t, first, other)
}
