package outbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockflow-backend/pkg/enums"
)

const EnvelopeVersion = 1

// ActorRef identifies the user whose request produced the event.
type ActorRef struct {
	UserID   uuid.UUID  `json:"user_id"`
	ClientID *uuid.UUID `json:"client_id,omitempty"`
	Role     enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is what lands in outbox_events.payload and, unchanged, on the topic.
type PayloadEnvelope struct {
	Version    int                   `json:"version"`
	EventID    string                `json:"event_id"`
	EventType  enums.OutboxEventType `json:"event_type"`
	OccurredAt time.Time             `json:"occurred_at"`
	Actor      *ActorRef             `json:"actor,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes without data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, fmt.Errorf("envelope %s has no data", envelope.EventID)
	}
	return envelope, nil
}
