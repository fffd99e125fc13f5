package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncOutcome("shipment_planned", OutboxPublished)
	m.IncOutcome("shipment_planned", OutboxPublished)
	m.IncOutcome("", OutboxParked)
	m.ObserveLag(time.Now().Add(-2 * time.Second))
	m.ObserveLag(time.Time{})
	m.ObserveBatch(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	published, err := findMetric(mfs, "stockflow_outbox_events_total", map[string]string{"event_type": "shipment_planned", "outcome": OutboxPublished})
	if err != nil || published.GetCounter().GetValue() != 2 {
		t.Fatalf("expected published=2, got %v (%v)", published, err)
	}
	if _, err := findMetric(mfs, "stockflow_outbox_events_total", map[string]string{"event_type": "unknown", "outcome": OutboxParked}); err != nil {
		t.Fatalf("expected blank event type to normalize: %v", err)
	}
	lag := findMetricFamily(mfs, "stockflow_outbox_publish_lag_seconds")
	if lag == nil || lag.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected exactly one lag sample")
	}
}
