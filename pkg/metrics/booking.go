package metrics

import "github.com/prometheus/client_golang/prometheus"

// Inventory operation results.
const (
	ResultOK           = "ok"
	ResultInsufficient = "insufficient"
	ResultNotFound     = "not_found"
	ResultError        = "error"
)

// Webhook processing outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeNoop      = "noop"
	OutcomeIgnored   = "ignored"
	OutcomeUnknown   = "unknown_reference"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
)

// BookingMetrics tracks inventory and payment reconciliation activity.
type BookingMetrics struct {
	inventoryOps      *prometheus.CounterVec
	consistencyErrors prometheus.Counter
	webhookEvents     *prometheus.CounterVec
}

// NewBookingMetrics registers the booking metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	m := &BookingMetrics{
		inventoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_operations_total",
			Help:      "Room inventory reserve/release operations by result.",
		}, []string{"operation", "result"}),
		consistencyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_consistency_errors_total",
			Help:      "Releases that would push available units past total units.",
		}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment processor webhook events by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}
	reg.MustRegister(m.inventoryOps, m.consistencyErrors, m.webhookEvents)
	return m
}

func (m *BookingMetrics) IncInventory(operation, result string) {
	if m == nil || m.inventoryOps == nil {
		return
	}
	m.inventoryOps.WithLabelValues(normalizeLabel(operation), normalizeLabel(result)).Inc()
}

func (m *BookingMetrics) IncConsistencyError() {
	if m == nil || m.consistencyErrors == nil {
		return
	}
	m.consistencyErrors.Inc()
}

func (m *BookingMetrics) IncWebhook(kind, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}
