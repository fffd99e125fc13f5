package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/db/models"
	"github.com/angelmondragon/stockflow-backend/pkg/enums"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

// DomainEvent is what services hand to Emit. AggregateType may be left empty;
// it is derived from EventType.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

type inserter interface {
	Insert(tx *gorm.DB, event *models.OutboxEvent) error
}

type Service struct {
	repo inserter
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit stores event in tx, so it commits or rolls back together with the state
// change that produced it.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("outbox emit requires a transaction")
	}
	envelope, err := s.envelope(&event)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event.EventType, err)
	}

	row := &models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       raw,
		CreatedAt:     envelope.OccurredAt,
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("insert %s outbox row: %w", event.EventType, err)
	}

	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"outbox_id":    row.ID.String(),
			"event_id":     envelope.EventID,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

// envelope validates event, fills its defaults and wraps the encoded data.
func (s *Service) envelope(event *DomainEvent) (PayloadEnvelope, error) {
	owner := event.EventType.Aggregate()
	switch {
	case owner == "":
		return PayloadEnvelope{}, fmt.Errorf("unknown outbox event type %q", event.EventType)
	case event.AggregateType == "":
		event.AggregateType = owner
	case event.AggregateType != owner:
		return PayloadEnvelope{}, fmt.Errorf("event %s belongs to %s, not %s", event.EventType, owner, event.AggregateType)
	}
	if event.AggregateID == uuid.Nil {
		return PayloadEnvelope{}, fmt.Errorf("event %s has no aggregate id", event.EventType)
	}
	if event.Data == nil {
		return PayloadEnvelope{}, fmt.Errorf("event %s has no data", event.EventType)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}
	if event.Version == 0 {
		event.Version = EnvelopeVersion
	}
	return PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		EventType:  event.EventType,
		OccurredAt: event.OccurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}
