package inbox

import (
	"time"

	"github.com/google/uuid"
)

// ConsumedMessage records a successfully applied external event. The row's
// existence is the sole de-duplication signal, so its creation must be atomic
// with the side effect it guards.
type ConsumedMessage struct {
	ID          uuid.UUID `json:"id"` // The external event identifier
	Handler     string    `json:"handler"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewConsumedMessage records that handler applied the event with the given identifier
func NewConsumedMessage(eventID uuid.UUID, handler string) *ConsumedMessage {
	return &ConsumedMessage{
		ID:          eventID,
		Handler:     handler,
		ProcessedAt: time.Now().UTC(),
	}
}

// DeadMessage is a quarantined external event that failed to parse or whose
// side effect failed non-transiently. Write-only sink; never replayed
// automatically.
type DeadMessage struct {
	ID         uuid.UUID `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Handler    string    `json:"handler"`
	Payload    string    `json:"payload"`
	Error      string    `json:"error"`
}

// NewDeadMessage quarantines a raw payload with the failure reason
func NewDeadMessage(handler, payload, errText string) *DeadMessage {
	return &DeadMessage{
		ID:         uuid.New(),
		ReceivedAt: time.Now().UTC(),
		Handler:    handler,
		Payload:    payload,
		Error:      errText,
	}
}
