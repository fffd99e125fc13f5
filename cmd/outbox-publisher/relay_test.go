package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/registry"
)

func TestProcessBatchSettlesEachRow(t *testing.T) {
	rows := []models.OutboxEvent{shipmentPlannedRow(t, 0), shipmentPlannedRow(t, 0)}
	repo := &fakeRepo{events: rows}
	sink := &fakeSink{errs: []error{errors.New("transient"), nil}}
	relay := newTestRelay(t, repo, sink, &fakeRegistry{resolved: shipmentResolved()}, config.OutboxConfig{BatchSize: 2, MaxAttempts: 5})

	claimed, err := relay.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if claimed != 2 {
		t.Fatalf("expected 2 claimed rows, got %d", claimed)
	}
	if len(repo.failed) != 1 || repo.failed[0] != rows[0].ID {
		t.Fatalf("expected first row marked failed, got %v", repo.failed)
	}
	if len(repo.published) != 1 || repo.published[0] != rows[1].ID {
		t.Fatalf("expected second row published, got %v", repo.published)
	}
}

func TestMessageCarriesAttributesAndOrderingKey(t *testing.T) {
	row := shipmentPlannedRow(t, 0)
	sink := &fakeSink{}
	relay := newTestRelay(t, &fakeRepo{events: []models.OutboxEvent{row}}, sink, &fakeRegistry{resolved: shipmentResolved()}, config.OutboxConfig{})

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sink.sent))
	}
	msg := sink.sent[0]
	if sink.topics[0] != "sf-fulfillment-events" {
		t.Fatalf("unexpected topic %q", sink.topics[0])
	}
	if msg.Attributes["event_type"] != string(enums.EventShipmentPlanned) || msg.Attributes["aggregate_id"] != row.AggregateID.String() {
		t.Fatalf("unexpected attributes %v", msg.Attributes)
	}
	if msg.OrderingKey != row.AggregateID.String() {
		t.Fatalf("expected ordering key to be the aggregate id, got %q", msg.OrderingKey)
	}
	if string(msg.Data) != string(row.Payload) {
		t.Fatalf("payload should be forwarded untouched")
	}
}

func TestProcessBatchParksRows(t *testing.T) {
	cases := []struct {
		name     string
		attempts int
		resolve  error
		publish  error
		reason   enums.OutboxDLQErrorReason
	}{
		{name: "unknown event", resolve: registry.NewNonRetryableError(enums.OutboxDLQReasonUnknownEvent, errors.New("unsupported")), reason: enums.OutboxDLQReasonUnknownEvent},
		{name: "invalid payload", resolve: registry.NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, errors.New("missing shipment_id")), reason: enums.OutboxDLQReasonInvalidPayload},
		{name: "permanent grpc status", publish: status.Error(codes.NotFound, "topic gone"), reason: enums.OutboxDLQReasonNonRetryable},
		{name: "attempt ceiling", attempts: 4, publish: errors.New("transient"), reason: enums.OutboxDLQReasonMaxAttempts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			row := shipmentPlannedRow(t, tc.attempts)
			repo := &fakeRepo{events: []models.OutboxEvent{row}}
			reg := &fakeRegistry{resolved: shipmentResolved()}
			if tc.resolve != nil {
				reg = &fakeRegistry{err: tc.resolve}
			}
			relay := newTestRelay(t, repo, &fakeSink{errs: []error{tc.publish}}, reg, config.OutboxConfig{MaxAttempts: 5})

			if _, err := relay.processBatch(context.Background()); err != nil {
				t.Fatalf("process batch: %v", err)
			}
			if len(repo.parked) != 1 || repo.parked[0] != row.ID {
				t.Fatalf("expected row parked, got %v", repo.parked)
			}
			if repo.reasons[0] != tc.reason {
				t.Fatalf("expected park reason %s, got %s", tc.reason, repo.reasons[0])
			}
			if len(repo.failed) != 0 || len(repo.published) != 0 {
				t.Fatalf("parked row must not be marked failed or published")
			}
		})
	}
}

func TestProcessBatchRecordsOutcomeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &fakeRepo{events: []models.OutboxEvent{shipmentPlannedRow(t, 0)}}
	relay := newTestRelay(t, repo, &fakeSink{}, &fakeRegistry{resolved: shipmentResolved()}, config.OutboxConfig{})
	relay.metrics = metrics.NewOutboxMetrics(reg)

	if _, err := relay.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "stockflow_outbox_events_total" && mf.GetMetric()[0].GetCounter().GetValue() == 1 {
			return
		}
	}
	t.Fatalf("expected one published outcome to be counted")
}

func TestReportBacklogSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	repo := &fakeRepo{backlog: outbox.Backlog{Pending: 7, Parked: 2}}
	relay := newTestRelay(t, repo, &fakeSink{}, &fakeRegistry{}, config.OutboxConfig{})
	relay.metrics = metrics.NewOutboxMetrics(reg)

	relay.reportBacklog(context.Background())

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "stockflow_outbox_backlog" {
			continue
		}
		for _, m := range mf.GetMetric() {
			got[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
		}
	}
	if got["pending"] != 7 || got["parked"] != 2 {
		t.Fatalf("unexpected backlog gauges %v", got)
	}
}

func TestProcessBatchEmpty(t *testing.T) {
	relay := newTestRelay(t, &fakeRepo{}, &fakeSink{}, &fakeRegistry{}, config.OutboxConfig{})
	claimed, err := relay.processBatch(context.Background())
	if err != nil || claimed != 0 {
		t.Fatalf("expected idle batch, got claimed=%d err=%v", claimed, err)
	}
}

func TestPermanentClassification(t *testing.T) {
	cases := map[error]bool{
		errors.New("connection reset"):                          false,
		status.Error(codes.Unavailable, "try later"):            false,
		status.Error(codes.PermissionDenied, "no"):              true,
		fmt.Errorf("wrapped: %w", registry.NonRetryableError{}): true,
	}
	for err, want := range cases {
		if got := permanent(err); got != want {
			t.Fatalf("permanent(%v) = %v, want %v", err, got, want)
		}
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	if got := nextBackoff(base, base, maxBackoff); got != time.Second {
		t.Fatalf("expected doubling, got %v", got)
	}
	if got := nextBackoff(8*time.Second, base, maxBackoff); got != maxBackoff {
		t.Fatalf("expected cap at %v, got %v", maxBackoff, got)
	}
	if got := nextBackoff(0, base, maxBackoff); got != time.Second {
		t.Fatalf("zero current should start from base, got %v", got)
	}
}

func TestNewRelayAppliesDefaults(t *testing.T) {
	relay := newTestRelay(t, &fakeRepo{}, &fakeSink{}, &fakeRegistry{}, config.OutboxConfig{})
	if relay.batchSize != defaultBatchSize || relay.maxAttempts != defaultMaxAttempts {
		t.Fatalf("unexpected defaults batch=%d attempts=%d", relay.batchSize, relay.maxAttempts)
	}
	if relay.pollInterval != defaultPollInterval || relay.publishTimeout != defaultPublishTimeout {
		t.Fatalf("unexpected default timings poll=%v publish=%v", relay.pollInterval, relay.publishTimeout)
	}
	if _, err := NewRelay(RelayParams{Config: &config.Config{}}); err == nil {
		t.Fatalf("expected missing dependencies to be rejected")
	}
}

func newTestRelay(t *testing.T, repo outboxRepository, s sink, reg registryResolver, outboxCfg config.OutboxConfig) *Relay {
	t.Helper()
	cfg := &config.Config{
		Outbox: outboxCfg,
		PubSub: config.PubSubConfig{FulfillmentTopic: "sf-fulfillment-events", OrderingEnabled: true},
	}
	relay, err := NewRelay(RelayParams{
		Config:     cfg,
		Logger:     logger.Nop(),
		DB:         fakeDB{},
		Sink:       s,
		Repository: repo,
		Registry:   reg,
	})
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	return relay
}

func shipmentPlannedRow(tb testing.TB, attempts int) models.OutboxEvent {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.EnvelopeVersion,
		EventID:    uuid.NewString(),
		EventType:  enums.EventShipmentPlanned,
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventShipmentPlanned,
		AggregateType: enums.AggregateShipment,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now().UTC(),
	}
}

func shipmentResolved() *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{EventType: enums.EventShipmentPlanned, Topic: "sf-fulfillment-events"},
		Payload:    &payloads.ShipmentPlannedEvent{},
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	parked    []uuid.UUID
	reasons   []enums.OutboxDLQErrorReason
	backlog   outbox.Backlog
}

func (f *fakeRepo) ClaimPending(*gorm.DB, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(_ *gorm.DB, id uuid.UUID, _ time.Time) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) RecordFailure(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) Park(_ *gorm.DB, id uuid.UUID, reason enums.OutboxDLQErrorReason, _ error, _ time.Time) error {
	f.parked = append(f.parked, id)
	f.reasons = append(f.reasons, reason)
	return nil
}

func (f *fakeRepo) Backlog(context.Context) (outbox.Backlog, error) {
	return f.backlog, nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

// fakeSink returns errs in order, then succeeds.
type fakeSink struct {
	errs   []error
	sent   []*gcppubsub.Message
	topics []string
}

func (f *fakeSink) Ping(context.Context) error { return nil }

func (f *fakeSink) Publish(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	f.sent = append(f.sent, msg)
	f.topics = append(f.topics, topic)
	if len(f.errs) == 0 {
		return "msg-id", nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return "msg-id", err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope = outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, nil
}
