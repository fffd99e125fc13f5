package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcomes for a single outbox row.
const (
	OutboxPublished = "published"
	OutboxRetried   = "retried"
	OutboxParked    = "parked"
)

// OutboxMetrics tracks the outbox relay.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	lag      prometheus.Histogram
	batch    prometheus.Histogram
	backlog  *prometheus.GaugeVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the relay, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "publish_lag_seconds",
		Help:      "Time between an event being written and it being published.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
	})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_size",
		Help:      "Rows claimed per relay batch.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
	backlog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "backlog",
		Help:      "Outbox rows awaiting publish (pending) or set aside (parked).",
	}, []string{"state"})
	reg.MustRegister(outcomes, lag, batch, backlog)
	return &OutboxMetrics{outcomes: outcomes, lag: lag, batch: batch, backlog: backlog}
}

func (m *OutboxMetrics) IncOutcome(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveLag records how long a published row waited since createdAt.
func (m *OutboxMetrics) ObserveLag(createdAt time.Time) {
	if m == nil || m.lag == nil || createdAt.IsZero() {
		return
	}
	m.lag.Observe(time.Since(createdAt).Seconds())
}

func (m *OutboxMetrics) ObserveBatch(size int) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(float64(size))
}

func (m *OutboxMetrics) SetBacklog(pending, parked int64) {
	if m == nil || m.backlog == nil {
		return
	}
	m.backlog.WithLabelValues("pending").Set(float64(pending))
	m.backlog.WithLabelValues("parked").Set(float64(parked))
}
