package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

// OutboxEvent is one pending, published or parked integration event. Payload holds
// the JSON envelope exactly as it goes on the wire.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	PublishedAt   *time.Time                `gorm:"column:published_at"`

	// Parked rows are never retried by the relay.
	ParkedAt   *time.Time                  `gorm:"column:parked_at"`
	ParkReason *enums.OutboxDLQErrorReason `gorm:"column:park_reason;type:text"`
}

func (e *OutboxEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// Pending reports whether the relay still owes this row a publish attempt.
func (e OutboxEvent) Pending() bool {
	return e.PublishedAt == nil && e.ParkedAt == nil
}
