package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the coordinator. Registered on the default
// registry; cmd/estatesearch exposes them over /metrics.
var (
	metricSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_coordinator_sessions_created_total",
		Help: "Sessions created on first user contact",
	})

	metricSessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_coordinator_sessions_evicted_total",
		Help: "Sessions evicted after the idle window",
	})

	metricDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_coordinator_dispatches_total",
		Help: "Worker requests dispatched, by kind",
	}, []string{"kind"})

	metricDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_coordinator_dispatch_failures_total",
		Help: "Dispatches that failed permanently after retries, by kind",
	}, []string{"kind"})

	metricReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_coordinator_replies_total",
		Help: "Worker replies applied, by kind and outcome",
	}, []string{"kind", "outcome"})

	metricDuplicateReplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_coordinator_duplicate_replies_total",
		Help: "Replies whose correlation id matched no outstanding request",
	}, []string{"kind"})

	metricExpiredRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estate_coordinator_expired_requests_total",
		Help: "Outstanding requests resolved by the enrichment deadline, by kind",
	}, []string{"kind"})

	metricFinalizations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "estate_coordinator_finalizations_total",
		Help: "Search turns finalized with a composite response",
	})

	metricLiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "estate_coordinator_live_sessions",
		Help: "Sessions currently held in memory",
	})
)

const (
	outcomeOK     = "ok"
	outcomeFailed = "failed"
)
