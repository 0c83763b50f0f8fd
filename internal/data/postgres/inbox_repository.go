package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bank-accounts-service/internal/domain/inbox"
	"github.com/bank-accounts-service/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// InboxRepository implements the inbox.Repository interface for PostgreSQL
type InboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewInboxRepository creates a new PostgreSQL inbox repository
func NewInboxRepository(logger *slog.Logger, db *persistence.PostgresDB) inbox.Repository {
	return &InboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so the dedup record commits
// atomically with the side effect it guards.
func (r *InboxRepository) WithTx(tx pgx.Tx) inbox.Repository {
	return &InboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateConsumed inserts the dedup record. A primary key collision on the
// event identifier maps to ErrAlreadyConsumed.
func (r *InboxRepository) CreateConsumed(ctx context.Context, message *inbox.ConsumedMessage) error {
	query := `
		INSERT INTO inbox_consumed (id, handler, processed_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.querier.Exec(ctx, query, message.ID, message.Handler, message.ProcessedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return inbox.ErrAlreadyConsumed{EventID: message.ID}
		}
		r.logger.Error("Failed to create consumed message", "id", message.ID.String(), "error", err)
		return fmt.Errorf("failed to create consumed message: %w", err)
	}

	return nil
}

// CreateDead quarantines a failed external message
func (r *InboxRepository) CreateDead(ctx context.Context, message *inbox.DeadMessage) error {
	query := `
		INSERT INTO inbox_dead_letters (id, received_at, handler, payload, error)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.querier.Exec(ctx, query,
		message.ID,
		message.ReceivedAt,
		message.Handler,
		message.Payload,
		message.Error,
	)
	if err != nil {
		r.logger.Error("Failed to create dead letter", "id", message.ID.String(), "error", err)
		return fmt.Errorf("failed to create dead letter: %w", err)
	}

	return nil
}
