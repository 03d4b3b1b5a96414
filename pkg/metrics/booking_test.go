package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBookingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.IncInventory("reserve", ResultOK)
	m.IncInventory("reserve", ResultOK)
	m.IncInventory("reserve", ResultInsufficient)
	m.IncConsistencyError()
	m.IncWebhook("succeeded", OutcomeApplied)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	ops := findMetricFamily(mfs, "hotelbooker_inventory_operations_total")
	if got := counterWithLabels(ops, map[string]string{"operation": "reserve", "result": ResultOK}); got != 2 {
		t.Fatalf("expected 2 ok reserves, got %f", got)
	}
	webhooks := findMetricFamily(mfs, "hotelbooker_webhook_events_total")
	if got := counterWithLabels(webhooks, map[string]string{"outcome": OutcomeApplied}); got != 1 {
		t.Fatalf("expected 1 applied webhook, got %f", got)
	}
	if mf := findMetricFamily(mfs, "hotelbooker_inventory_consistency_errors_total"); mf == nil || counterTotal(mf) != 1 {
		t.Fatalf("expected one consistency error")
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.IncInventory("reserve", ResultOK)
	m.IncWebhook("succeeded", OutcomeApplied)
	m.IncConsistencyError()

	noop := NewBookingMetrics(nil)
	noop.IncInventory("release", ResultError)
}

func counterTotal(mf *dto.MetricFamily) float64 {
	var total float64
	for _, metric := range mf.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	return total
}
