// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconciliationsTotal tracks reconciliations by outcome
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "reconciliations_total",
			Help:      "Total number of contact reconciliations by outcome",
		},
		[]string{"outcome"},
	)

	// ReconcileDuration tracks reconciliation latency including retries
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of contact reconciliations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"outcome"},
	)

	// RetriesTotal tracks reconciliations re-run after a concurrency conflict
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "retries_total",
			Help:      "Total number of reconciliation retries after a conflict",
		},
	)

	// DemotionsTotal tracks primaries demoted to secondaries by merges
	DemotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "demotions_total",
			Help:      "Total number of primary contacts demoted by cluster merges",
		},
	)

	// IntegrityFaultsTotal tracks clusters found violating the link invariants
	IntegrityFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "identity",
			Name:      "integrity_faults_total",
			Help:      "Total number of contact integrity faults detected during reconciliation",
		},
	)

	// HTTPRequestsTotal tracks inbound requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of inbound HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
)

// RecordReconciliation records one finished reconciliation
func RecordReconciliation(outcome string, duration time.Duration) {
	ReconciliationsTotal.WithLabelValues(outcome).Inc()
	ReconcileDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordRetry() {
	RetriesTotal.Inc()
}

func RecordDemotions(n int) {
	if n > 0 {
		DemotionsTotal.Add(float64(n))
	}
}

func RecordIntegrityFault() {
	IntegrityFaultsTotal.Inc()
}

func RecordHTTPRequest(method, route, statusCode string) {
	HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
}
