package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcome labels.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// PaymentMetrics records webhook ingestion and ledger reconciliation health.
type PaymentMetrics struct {
	events      *prometheus.CounterVec
	mismatches  prometheus.Counter
	stuckClaims prometheus.Gauge
}

// NewPaymentMetrics registers the payment pipeline metrics on the provided
// registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Processor webhook deliveries by event type and outcome.",
	}, []string{"type", "outcome"})
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reconciliation_mismatch_total",
		Help: "Settlement events whose account reference disagreed with the stored row.",
	})
	stuckClaims := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "payment_event_stuck_claims",
		Help: "Claims stuck in processing beyond the stale TTL, sampled by cron.",
	})
	reg.MustRegister(events, mismatches, stuckClaims)
	return &PaymentMetrics{
		events:      events,
		mismatches:  mismatches,
		stuckClaims: stuckClaims,
	}
}

// IncEvent counts one webhook delivery.
func (p *PaymentMetrics) IncEvent(eventType, outcome string) {
	if p == nil || p.events == nil {
		return
	}
	p.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncMismatch counts a non-fatal reconciliation disagreement.
func (p *PaymentMetrics) IncMismatch() {
	if p == nil || p.mismatches == nil {
		return
	}
	p.mismatches.Inc()
}

// SetStuckClaims records the current stuck claim count.
func (p *PaymentMetrics) SetStuckClaims(count int) {
	if p == nil || p.stuckClaims == nil {
		return
	}
	p.stuckClaims.Set(float64(count))
}
