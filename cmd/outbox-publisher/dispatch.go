package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/metrics"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/registry"
)

// outcome is what happened to one row; settle turns it into a repository write.
type outcome struct {
	result  string
	reason  enums.OutboxDLQErrorReason
	topic   string
	eventID string
	err     error
}

func (r *Relay) dispatch(ctx context.Context, event models.OutboxEvent) outcome {
	resolved, err := r.registry.Resolve(event)
	if err != nil {
		return outcome{result: metrics.OutboxParked, reason: registry.ParkReason(err), err: err}
	}
	out := outcome{topic: resolved.Descriptor.Topic, eventID: resolved.Envelope.EventID}

	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	if _, err := r.sink.Publish(publishCtx, out.topic, r.message(event, resolved)); err != nil {
		out.err = err
		switch {
		case permanent(err):
			out.result, out.reason = metrics.OutboxParked, registry.ParkReason(err)
		case event.AttemptCount+1 >= r.maxAttempts:
			out.result, out.reason = metrics.OutboxParked, enums.OutboxDLQReasonMaxAttempts
			out.err = fmt.Errorf("max publish attempts reached: %w", err)
		default:
			out.result = metrics.OutboxRetried
		}
		return out
	}
	out.result = metrics.OutboxPublished
	return out
}

func (r *Relay) message(event models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if r.ordering {
		msg.OrderingKey = event.AggregateID.String()
	}
	return msg
}

// permanent reports whether retrying err can never succeed.
func permanent(err error) bool {
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return true
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition, codes.Unauthenticated:
		return true
	}
	return false
}

func (r *Relay) settle(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
		"outcome":        out.result,
	}
	if out.eventID != "" {
		fields["event_id"] = out.eventID
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	if out.err != nil {
		fields["error"] = out.err.Error()
	}
	logCtx := r.logg.WithFields(ctx, fields)
	r.metrics.IncOutcome(string(event.EventType), out.result)

	now := time.Now()
	switch out.result {
	case metrics.OutboxPublished:
		if err := r.repo.MarkPublished(tx, event.ID, now); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		r.metrics.ObserveLag(event.CreatedAt)
		r.logg.Info(logCtx, "outbox event published")
	case metrics.OutboxRetried:
		if err := r.repo.RecordFailure(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("record failure %s: %w", event.ID, err)
		}
		r.logg.Warn(logCtx, "outbox publish failed; will retry")
	default:
		logCtx = r.logg.WithField(logCtx, "park_reason", string(out.reason))
		if err := r.repo.Park(tx, event.ID, out.reason, out.err, now); err != nil {
			return fmt.Errorf("park %s: %w", event.ID, err)
		}
		r.logg.Warn(logCtx, "outbox event parked")
	}
	return nil
}
