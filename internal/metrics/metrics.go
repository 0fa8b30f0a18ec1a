package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	LedgerUpdates *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	SweepFailures *prometheus.CounterVec
	DepositsSeen  *prometheus.CounterVec
}

// New creates the collectors and registers them on the registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LedgerUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_updates_total",
				Help: "Ledger update attempts by business and outcome.",
			},
			[]string{"business", "outcome"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_sweep_duration_seconds",
				Help:    "Duration of reconciliation sweeps per currency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"currency"},
		),
		SweepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_sweep_failures_total",
				Help: "Reconciliation sweeps aborted before checkpoint advance.",
			},
			[]string{"currency"},
		),
		DepositsSeen: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_deposits_total",
				Help: "Deposits observed by the reconciliation looper, by disposition.",
			},
			[]string{"currency", "disposition"},
		),
	}
	registry.MustRegister(m.LedgerUpdates, m.SweepDuration, m.SweepFailures, m.DepositsSeen)
	return m
}

// Handler serves the registry over HTTP.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveUpdate records a ledger update outcome. Nil-safe so services can run
// without metrics in tests.
func (m *Metrics) ObserveUpdate(business, outcome string) {
	if m == nil {
		return
	}
	m.LedgerUpdates.WithLabelValues(business, outcome).Inc()
}
