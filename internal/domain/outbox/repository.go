package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages transactional outbox message persistence
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns unprocessed messages ordered by occurrence time
	GetPending(ctx context.Context, limit int) ([]*Message, error)

	// MarkProcessed persists the single pending-to-processed transition
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error

	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	return "outbox message not found: " + e.ID.String()
}

// ErrDuplicateMessage indicates event identifier uniqueness violation
type ErrDuplicateMessage struct {
	ID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message: " + e.ID.String()
}
