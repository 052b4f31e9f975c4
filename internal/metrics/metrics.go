// Package metrics exposes Prometheus instruments for the lead pipeline and
// the results API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bioleads"

var (
	sourceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of upstream API requests by source and status",
		},
		[]string{"source", "status"},
	)

	sourceRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Upstream API request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	sourceLeadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_leads_total",
			Help:      "Lead records returned by each source adapter",
		},
		[]string{"source"},
	)

	sourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Source adapter runs that failed and were skipped",
		},
		[]string{"source"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	stageLeads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_leads",
			Help:      "Lead count produced by the last run of each stage",
		},
		[]string{"stage"},
	)

	leadsByTier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leads_by_tier",
			Help:      "Scored leads per tier in the last run",
		},
		[]string{"tier"},
	)

	enrichCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_cache_total",
			Help:      "Company enrichment cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

func init() {
	prometheus.MustRegister(
		sourceRequestsTotal,
		sourceRequestDuration,
		sourceLeadsTotal,
		sourceFailuresTotal,
		stageDuration,
		stageLeads,
		leadsByTier,
		enrichCacheTotal,
	)
}

// ObserveSourceRequest records one upstream request. status is the HTTP
// status code as text, or "error" when no response arrived.
func ObserveSourceRequest(source, status string, d time.Duration) {
	sourceRequestsTotal.WithLabelValues(source, status).Inc()
	sourceRequestDuration.WithLabelValues(source).Observe(d.Seconds())
}

// AddSourceLeads counts leads returned by a source adapter.
func AddSourceLeads(source string, n int) {
	sourceLeadsTotal.WithLabelValues(source).Add(float64(n))
}

// IncSourceFailure counts a source adapter run that was skipped.
func IncSourceFailure(source string) {
	sourceFailuresTotal.WithLabelValues(source).Inc()
}

// ObserveStage records a pipeline stage's duration and output size.
func ObserveStage(stage string, d time.Duration, leads int) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	stageLeads.WithLabelValues(stage).Set(float64(leads))
}

// SetTierCounts publishes the tier distribution of the last scored batch.
func SetTierCounts(counts map[string]int) {
	for tier, n := range counts {
		leadsByTier.WithLabelValues(tier).Set(float64(n))
	}
}

// IncEnrichCache counts a company cache lookup.
func IncEnrichCache(hit bool) {
	if hit {
		enrichCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	enrichCacheTotal.WithLabelValues("miss").Inc()
}
