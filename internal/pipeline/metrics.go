package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	ChunksIngested     prometheus.Counter
	ChunksDeduplicated prometheus.Counter
	ProviderFailures   *prometheus.CounterVec
	DecisionsPersisted *prometheus.CounterVec
	EventsPromoted     prometheus.Counter
	GuardrailRejects   *prometheus.CounterVec
	RunDuration        prometheus.Histogram
}

// NewMetrics creates and registers the pipeline collectors. A nil
// registerer creates unregistered collectors, which tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ChunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "chunks_ingested_total",
			Help:      "Chunks newly persisted by intake.",
		}),
		ChunksDeduplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "chunks_deduplicated_total",
			Help:      "Chunks skipped as already ingested.",
		}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "provider_failures_total",
			Help:      "Provider analyses that ended in failure.",
		}, []string{"provider"}),
		DecisionsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "decisions_persisted_total",
			Help:      "Validated decisions written per provider.",
		}, []string{"provider"}),
		EventsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "events_promoted_total",
			Help:      "Consensus events promoted to the shared timeline.",
		}),
		GuardrailRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "analystd",
			Name:      "guardrail_rejects_total",
			Help:      "Decisions rejected by pre-execution checks.",
		}, []string{"reason"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "analystd",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one full pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.ChunksIngested,
			m.ChunksDeduplicated,
			m.ProviderFailures,
			m.DecisionsPersisted,
			m.EventsPromoted,
			m.GuardrailRejects,
			m.RunDuration,
		)
	}
	return m
}
