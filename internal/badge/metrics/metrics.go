// Package metrics provides Prometheus metrics for badge issuance.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the issuance collectors. A nil *Metrics records nothing.
type Metrics struct {
	OutcomesTotal          *prometheus.CounterVec   // terminal results by outcome and reason
	IssueDurationSeconds   *prometheus.HistogramVec // upload to terminal state, by outcome
	VerificationFailures   *prometheus.CounterVec   // gateway failures by category
	MintsSubmittedTotal    prometheus.Counter
	ConfirmDurationSeconds prometheus.Histogram
	RepairsTotal           *prometheus.CounterVec // repair and reconcile runs by result
	DuplicatesTotal        *prometheus.CounterVec // repeated certificate uploads by prior state
	InFlight               prometheus.Gauge       // attempts between upload and terminal state
}

// New registers the issuance collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillbadge_issuance_outcomes_total",
			Help: "Issuance attempts reaching a terminal state, by outcome and reason",
		}, []string{"outcome", "reason"}),

		IssueDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillbadge_issuance_duration_seconds",
			Help:    "Time from upload to terminal state",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),

		VerificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillbadge_verification_failures_total",
			Help: "Verification gateway failures by category",
		}, []string{"category"}),

		MintsSubmittedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "skillbadge_mints_submitted_total",
			Help: "Mint transactions broadcast to the ledger",
		}),

		ConfirmDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillbadge_mint_confirm_duration_seconds",
			Help:    "Time from mint submission to receipt",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}),

		RepairsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillbadge_repairs_total",
			Help: "Repair and reconcile runs by kind and result",
		}, []string{"kind", "result"}),

		DuplicatesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillbadge_duplicate_certificates_total",
			Help: "Uploads of a certificate that already has an attempt, by prior state",
		}, []string{"prior_state"}),

		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "skillbadge_inflight_attempts",
			Help: "Attempts between upload and terminal state",
		}),
	}
}

func (m *Metrics) RecordOutcome(outcome, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(outcome, reason).Inc()
	m.IssueDurationSeconds.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordVerificationFailure(category string) {
	if m == nil {
		return
	}
	m.VerificationFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) RecordMintSubmitted() {
	if m == nil {
		return
	}
	m.MintsSubmittedTotal.Inc()
}

func (m *Metrics) ObserveConfirm(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ConfirmDurationSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRepair(kind, result string) {
	if m == nil {
		return
	}
	m.RepairsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordDuplicate(priorState string) {
	if m == nil {
		return
	}
	m.DuplicatesTotal.WithLabelValues(priorState).Inc()
}

func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}
