package outbox

import (
	"encoding/json"
	"time"

	"github.com/bank-accounts-service/internal/domain/events"
	"github.com/google/uuid"
)

// Message is one staged domain event. It is created in the same unit of work
// as the ledger mutation it announces, mutated only by the dispatcher setting
// ProcessedAt, and never deleted. Its ID doubles as the idempotency key for
// downstream consumers.
type Message struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"` // Nil while pending
	Source        string          `json:"source"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	CausationID   uuid.UUID       `json:"causation_id"`
}

// NewMessage stages an event payload. The payload must embed the envelope so
// the serialized body carries the same identity and metadata as the row.
func NewMessage(eventType string, env events.Envelope, payload any) (*Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:            env.EventID,
		Type:          eventType,
		Payload:       body,
		OccurredAt:    env.OccurredAt,
		Source:        env.Meta.Source,
		CorrelationID: env.Meta.CorrelationID,
		CausationID:   env.Meta.CausationID,
	}, nil
}

// MarkProcessed records a confirmed publish
func (m *Message) MarkProcessed() {
	now := time.Now().UTC()
	m.ProcessedAt = &now
}

// Pending reports whether the message still awaits a confirmed publish
func (m *Message) Pending() bool {
	return m.ProcessedAt == nil
}

// RoutingKey derives the bus routing key from the event type
func (m *Message) RoutingKey() string {
	return events.RoutingKey(m.Type)
}
