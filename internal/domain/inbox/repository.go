package inbox

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages the consumed-message ledger and the dead-letter sink
type Repository interface {
	// CreateConsumed inserts the dedup record and returns ErrAlreadyConsumed
	// when the event identifier was applied before.
	CreateConsumed(ctx context.Context, message *ConsumedMessage) error

	CreateDead(ctx context.Context, message *DeadMessage) error

	WithTx(tx pgx.Tx) Repository
}

// ErrAlreadyConsumed indicates the event was applied before. Callers treat it
// as a benign duplicate, not a failure.
type ErrAlreadyConsumed struct {
	EventID uuid.UUID
}

func (e ErrAlreadyConsumed) Error() string {
	return "event already consumed: " + e.EventID.String()
}
