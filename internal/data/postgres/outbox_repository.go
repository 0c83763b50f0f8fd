package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bank-accounts-service/internal/domain/outbox"
	"github.com/bank-accounts-service/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) outbox.Repository {
	return &OutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so staging happens in the
// same unit of work as the ledger mutation.
func (r *OutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const outboxColumns = `id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id`

func scanOutboxMessage(row pgx.Row) (*outbox.Message, error) {
	var msg outbox.Message
	err := row.Scan(
		&msg.ID,
		&msg.Type,
		&msg.Payload,
		&msg.OccurredAt,
		&msg.ProcessedAt,
		&msg.Source,
		&msg.CorrelationID,
		&msg.CausationID,
	)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Create stages an outbox message
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	query := `
		INSERT INTO outbox_messages (id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.querier.Exec(ctx, query,
		message.ID,
		message.Type,
		message.Payload,
		message.OccurredAt,
		message.ProcessedAt,
		message.Source,
		message.CorrelationID,
		message.CausationID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return outbox.ErrDuplicateMessage{ID: message.ID}
		}
		r.logger.Error("Failed to create outbox message", "id", message.ID.String(), "error", err)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending returns unprocessed messages ordered by occurrence time
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE processed_at IS NULL
		ORDER BY occurred_at ASC
		LIMIT $1
	`

	rows, err := r.querier.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		msg, err := scanOutboxMessage(rows)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// MarkProcessed records a confirmed publish. A message already marked stays
// marked; the transition happens at most once.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	query := `
		UPDATE outbox_messages
		SET processed_at = $1
		WHERE id = $2 AND processed_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, processedAt, id)
	if err != nil {
		r.logger.Error("Failed to mark outbox message processed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark outbox message processed: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either missing or already processed; distinguish for the caller
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}

	return nil
}

// GetByID retrieves an outbox message by its ID
func (r *OutboxRepository) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Message, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_messages
		WHERE id = $1
	`

	msg, err := scanOutboxMessage(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, outbox.ErrMessageNotFound{ID: id}
		}
		r.logger.Error("Failed to get outbox message", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get outbox message: %w", err)
	}

	return msg, nil
}
