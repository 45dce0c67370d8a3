// Package metrics holds the Prometheus instrumentation for the
// trigger-ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// IngestMetrics counts webhook deliveries by outcome and times the
// full pipeline.
type IngestMetrics struct {
	Webhooks       *prometheus.CounterVec
	IngestDuration prometheus.Histogram
}

// Outcome label values for the webhook counter.
const (
	OutcomeReceived     = "received"
	OutcomeUnauthorized = "unauthorized"
	OutcomeUnknownToken = "unknown_token"
	OutcomeDuplicate    = "duplicate"
	OutcomeEnrichFailed = "enrich_failed"
	OutcomePersisted    = "persisted"
	OutcomeTransitioned = "transitioned"
	OutcomeRejected     = "rejected"
)

func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		Webhooks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dropsentry_webhook_events_total",
				Help: "Webhook deliveries by pipeline outcome",
			},
			[]string{"outcome"},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dropsentry_ingest_duration_seconds",
				Help:    "End-to-end trigger ingestion latency",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Webhooks, m.IngestDuration)
	}
	return m
}

// Count is a nil-safe increment, so services can run without metrics
// in tests.
func (m *IngestMetrics) Count(outcome string) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(outcome).Inc()
}

func (m *IngestMetrics) ObserveDuration(seconds float64) {
	if m == nil {
		return
	}
	m.IngestDuration.Observe(seconds)
}
