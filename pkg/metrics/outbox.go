package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outbox delivery outcomes.
const (
	DeliveryPublished = "published"
	DeliveryRetry     = "retry"
	DeliveryTerminal  = "terminal"
)

// OutboxMetrics tracks how outbox rows leave the table.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batchSize  prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deliveries_total",
			Help:      "Outbox publish attempts by event type and outcome.",
		}, []string{"event_type", "outcome"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_size",
			Help:      "Rows claimed per publisher poll.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
	}
	reg.MustRegister(m.deliveries, m.batchSize)
	return m
}

func (m *OutboxMetrics) IncDelivery(eventType, outcome string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(n int) {
	if m == nil || m.batchSize == nil {
		return
	}
	m.batchSize.Observe(float64(n))
}
