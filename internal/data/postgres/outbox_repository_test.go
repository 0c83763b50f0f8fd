package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-accounts-service/internal/domain/outbox"
)

func testOutboxMessage() *outbox.Message {
	return &outbox.Message{
		ID:            uuid.New(),
		Type:          "AccountOpened",
		Payload:       json.RawMessage(`{"eventId":"test"}`),
		OccurredAt:    time.Now().UTC(),
		Source:        "account-service",
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
	}
}

func TestOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}
	msg := testOutboxMessage()

	query := `
		INSERT INTO outbox_messages \(id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(msg.ID, msg.Type, msg.Payload, msg.OccurredAt, msg.ProcessedAt, msg.Source, msg.CorrelationID, msg.CausationID).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, msg)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate event identifier", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(msg.ID, msg.Type, msg.Payload, msg.OccurredAt, msg.ProcessedAt, msg.Source, msg.CorrelationID, msg.CausationID).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err := repo.Create(ctx, msg)
		assert.Error(t, err)
		var dupErr outbox.ErrDuplicateMessage
		assert.ErrorAs(t, err, &dupErr)
		assert.Equal(t, msg.ID, dupErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("insert error")
		mock.ExpectExec(query).
			WithArgs(msg.ID, msg.Type, msg.Payload, msg.OccurredAt, msg.ProcessedAt, msg.Source, msg.CorrelationID, msg.CausationID).
			WillReturnError(dbErr)

		err := repo.Create(ctx, msg)
		assert.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}

	query := `
		SELECT id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id
		FROM outbox_messages
		WHERE processed_at IS NULL
		ORDER BY occurred_at ASC
		LIMIT \$1
	`

	t.Run("returns pending messages in occurrence order", func(t *testing.T) {
		first := testOutboxMessage()
		second := testOutboxMessage()
		rows := pgxmock.NewRows([]string{"id", "type", "payload", "occurred_at", "processed_at", "source", "correlation_id", "causation_id"}).
			AddRow(first.ID, first.Type, first.Payload, first.OccurredAt, first.ProcessedAt, first.Source, first.CorrelationID, first.CausationID).
			AddRow(second.ID, second.Type, second.Payload, second.OccurredAt, second.ProcessedAt, second.Source, second.CorrelationID, second.CausationID)

		mock.ExpectQuery(query).WithArgs(10).WillReturnRows(rows)

		messages, err := repo.GetPending(ctx, 10)
		assert.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, first.ID, messages[0].ID)
		assert.True(t, messages[0].Pending())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("query error")
		mock.ExpectQuery(query).WithArgs(10).WillReturnError(dbErr)

		messages, err := repo.GetPending(ctx, 10)
		assert.Error(t, err)
		assert.Nil(t, messages)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOutboxRepository_MarkProcessed(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OutboxRepository{querier: mock, logger: logger}
	id := uuid.New()
	processedAt := time.Now().UTC()

	query := `
		UPDATE outbox_messages
		SET processed_at = \$1
		WHERE id = \$2 AND processed_at IS NULL
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(processedAt, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.MarkProcessed(ctx, id, processedAt)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already processed is a no-op", func(t *testing.T) {
		existing := testOutboxMessage()
		existing.ID = id
		existing.ProcessedAt = &processedAt

		mock.ExpectExec(query).
			WithArgs(processedAt, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id`).
			WithArgs(id).
			WillReturnRows(pgxmock.NewRows([]string{"id", "type", "payload", "occurred_at", "processed_at", "source", "correlation_id", "causation_id"}).
				AddRow(existing.ID, existing.Type, existing.Payload, existing.OccurredAt, existing.ProcessedAt, existing.Source, existing.CorrelationID, existing.CausationID))

		err := repo.MarkProcessed(ctx, id, processedAt)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing message", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(processedAt, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`SELECT id, type, payload, occurred_at, processed_at, source, correlation_id, causation_id`).
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		err := repo.MarkProcessed(ctx, id, processedAt)
		assert.Error(t, err)
		var notFoundErr outbox.ErrMessageNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, id, notFoundErr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
