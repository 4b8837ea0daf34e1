package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordOutcome("issued", "", time.Second)
	m.RecordOutcome("rejected", "invalid certificate", time.Millisecond)
	m.RecordOutcome("rejected", "invalid certificate", time.Millisecond)
	m.RecordVerificationFailure("timeout")
	m.RecordMintSubmitted()
	m.RecordRepair("persist", "issued")
	m.RecordDuplicate("issued")
	m.IncInFlight()
	m.IncInFlight()
	m.DecInFlight()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("issued", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutcomesTotal.WithLabelValues("rejected", "invalid certificate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MintsSubmittedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RepairsTotal.WithLabelValues("persist", "issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicatesTotal.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InFlight))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOutcome("issued", "", time.Second)
		m.RecordVerificationFailure("timeout")
		m.RecordMintSubmitted()
		m.ObserveConfirm(time.Second)
		m.RecordRepair("persist", "issued")
		m.RecordDuplicate("issued")
		m.IncInFlight()
		m.DecInFlight()
	})
}
