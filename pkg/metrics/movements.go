package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MovementMetrics records stock movement outcomes by transaction type.
type MovementMetrics struct {
	duration *prometheus.HistogramVec
	applied  *prometheus.CounterVec
	rejected *prometheus.CounterVec
	scans    *prometheus.CounterVec
}

// NewMovementMetrics registers the stock movement metrics on the provided registerer.
func NewMovementMetrics(reg prometheus.Registerer) *MovementMetrics {
	if reg == nil {
		return &MovementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stock_movement_duration_seconds",
		Help:    "Duration of stock movement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_applied",
		Help: "Stock movements committed to the ledger.",
	}, []string{"type"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_movements_rejected",
		Help: "Stock movements rejected before commit.",
	}, []string{"type", "reason"})
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "barcode_scans",
		Help: "Barcode scan decode attempts by outcome.",
	}, []string{"decoder", "outcome"})
	reg.MustRegister(duration, applied, rejected, scans)
	return &MovementMetrics{
		duration: duration,
		applied:  applied,
		rejected: rejected,
		scans:    scans,
	}
}

// ObserveDuration records how long a movement transaction took.
func (m *MovementMetrics) ObserveDuration(txType string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(txType)).Observe(duration.Seconds())
}

// IncApplied increments the applied counter for the movement type.
func (m *MovementMetrics) IncApplied(txType string) {
	if m == nil || m.applied == nil {
		return
	}
	m.applied.WithLabelValues(normalizeLabel(txType)).Inc()
}

// IncRejected increments the rejected counter for the movement type and reason.
func (m *MovementMetrics) IncRejected(txType, reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(txType), normalizeLabel(reason)).Inc()
}

// IncScan counts one decode attempt for the named decoder.
func (m *MovementMetrics) IncScan(decoder, outcome string) {
	if m == nil || m.scans == nil {
		return
	}
	m.scans.WithLabelValues(normalizeLabel(decoder), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
