package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	PhaseCalls       *prometheus.CounterVec
	IntegrityLevels  *prometheus.CounterVec
	ArchiveOps       *prometheus.CounterVec
	LedgerOps        *prometheus.CounterVec
	BookingDuration  prometheus.Histogram
	ReconciledTotals *prometheus.CounterVec
}

// NewMetrics creates new prometheus metrics registered on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PhaseCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_phase_calls_total",
			Help:      "Gateway phase calls by action and outcome",
		}, []string{"action", "outcome"}),
		IntegrityLevels: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_level_total",
			Help:      "Integrity level reached by confirmed bookings and reviews",
		}, []string{"subject", "level"}),
		ArchiveOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_operations_total",
			Help:      "Content archive operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		LedgerOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		BookingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Time taken to confirm and secure a booking",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconciledTotals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciled_bookings_total",
			Help:      "Bookings processed by the reconciliation job by resulting level",
		}, []string{"level"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObservePhase(action string, err error) {
	if m == nil {
		return
	}
	m.PhaseCalls.WithLabelValues(action, outcome(err)).Inc()
}

func (m *Metrics) ObserveIntegrity(subject, level string) {
	if m == nil {
		return
	}
	m.IntegrityLevels.WithLabelValues(subject, level).Inc()
}

func (m *Metrics) ObserveArchive(op string, err error) {
	if m == nil {
		return
	}
	m.ArchiveOps.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ObserveLedger(op string, err error) {
	if m == nil {
		return
	}
	m.LedgerOps.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ObserveBookingSeconds(seconds float64) {
	if m == nil {
		return
	}
	m.BookingDuration.Observe(seconds)
}

func (m *Metrics) ObserveReconciled(level string) {
	if m == nil {
		return
	}
	m.ReconciledTotals.WithLabelValues(level).Inc()
}
