// Package registry maps stored outbox rows to their topic and typed payload.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox"
	"github.com/angelmondragon/stockflow-backend/pkg/outbox/payloads"
)

// EventDescriptor is how one event type is routed and decoded.
type EventDescriptor struct {
	EventType enums.OutboxEventType
	Topic     string
	newData   func() any
}

// AggregateType is implied by the event type.
func (d EventDescriptor) AggregateType() enums.OutboxAggregateType {
	return d.EventType.Aggregate()
}

// ResolvedEvent is a row that passed every check and is ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries  map[enums.OutboxEventType]EventDescriptor
	validate *validator.Validate
}

// NonRetryableError marks a row the publisher should park rather than retry.
type NonRetryableError struct {
	Reason enums.OutboxDLQErrorReason
	Err    error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(reason enums.OutboxDLQErrorReason, err error) NonRetryableError {
	return NonRetryableError{Reason: reason, Err: err}
}

// ParkReason extracts the reason carried by err, defaulting to non_retryable.
func ParkReason(err error) enums.OutboxDLQErrorReason {
	var nonRetry NonRetryableError
	if errors.As(err, &nonRetry) && nonRetry.Reason != "" {
		return nonRetry.Reason
	}
	return enums.OutboxDLQReasonNonRetryable
}

func data[T any]() func() any {
	return func() any { return new(T) }
}

// NewEventRegistry registers every published event type. Each is routed by
// its aggregate through cfg.TopicFor.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.FulfillmentTopic == "" {
		return nil, fmt.Errorf("fulfillment topic is required")
	}
	reg := &EventRegistry{
		entries:  make(map[enums.OutboxEventType]EventDescriptor),
		validate: validator.New(),
	}
	decoders := map[enums.OutboxEventType]func() any{
		enums.EventSalesOrderCreated:       data[payloads.SalesOrderCreatedEvent](),
		enums.EventSalesOrderReserved:      data[payloads.SalesOrderStatusEvent](),
		enums.EventSalesOrderShipped:       data[payloads.SalesOrderStatusEvent](),
		enums.EventSalesOrderDelivered:     data[payloads.SalesOrderStatusEvent](),
		enums.EventSalesOrderCanceled:      data[payloads.SalesOrderStatusEvent](),
		enums.EventShipmentPlanned:         data[payloads.ShipmentPlannedEvent](),
		enums.EventShipmentCarrierAssigned: data[payloads.ShipmentCarrierAssignedEvent](),
		enums.EventShipmentInTransit:       data[payloads.ShipmentStatusEvent](),
		enums.EventShipmentDelivered:       data[payloads.ShipmentStatusEvent](),
		enums.EventPurchaseOrderReceived:   data[payloads.PurchaseOrderReceivedEvent](),
		enums.EventCarrierCapacityReset:    data[payloads.CarrierCapacityResetEvent](),
		enums.EventCarrierStatusChanged:    data[payloads.CarrierStatusChangedEvent](),
	}
	for eventType, newData := range decoders {
		if !eventType.IsValid() {
			return nil, fmt.Errorf("event type %s has no aggregate", eventType)
		}
		reg.entries[eventType] = EventDescriptor{
			EventType: eventType,
			Topic:     cfg.TopicFor(string(eventType.Aggregate())),
			newData:   newData,
		}
	}
	return reg, nil
}

// Descriptor returns the registration for eventType.
func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// Resolve checks the row against its registration and decodes and validates
// the payload. Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonUnknownEvent, fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if want := desc.AggregateType(); want != event.AggregateType {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, fmt.Errorf("aggregate mismatch: expected %s got %s", want, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, errors.New("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, err)
	}
	payload := desc.newData()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if err := r.validate.Struct(payload); err != nil {
		return nil, NewNonRetryableError(enums.OutboxDLQReasonInvalidPayload, fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
