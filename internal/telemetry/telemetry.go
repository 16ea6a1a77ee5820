// Package telemetry exposes Prometheus instrumentation for the query path.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websearch_queries_total",
		Help: "Total number of search queries executed, by agent.",
	}, []string{"agent_id"})

	queryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "websearch_query_latency_seconds",
		Help:    "End to end latency of search queries in seconds.",
		Buckets: []float64{0.5, 1, 2, 4, 6, 8, 10, 15, 30},
	})

	rateLimiterDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websearch_rate_limiter_drops_total",
		Help: "Queries rejected by the admission controller, by reason.",
	}, []string{"reason"})

	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websearch_pages_fetched_total",
		Help: "Result pages fetched after a search, by outcome.",
	}, []string{"outcome"})
)

// Telemetry records query metrics. The zero value is not usable; construct
// with New.
type Telemetry struct {
	now func() time.Time
}

// New returns a Telemetry facade backed by the package level collectors.
func New() *Telemetry {
	return &Telemetry{now: time.Now}
}

// MeasureQuery starts timing a query for the given agent and counts it.
// The returned function observes the elapsed latency when called.
func (t *Telemetry) MeasureQuery(agentID string) func() {
	queriesTotal.WithLabelValues(agentID).Inc()
	start := t.now()
	return func() {
		queryLatency.Observe(t.now().Sub(start).Seconds())
	}
}

// RecordRateLimitDrop counts a rejected query by rejection reason.
func (t *Telemetry) RecordRateLimitDrop(reason string) {
	rateLimiterDrops.WithLabelValues(reason).Inc()
}

// RecordPageFetch counts a page fetch attempt by outcome ("ok" or "error").
func (t *Telemetry) RecordPageFetch(outcome string) {
	pagesFetched.WithLabelValues(outcome).Inc()
}
