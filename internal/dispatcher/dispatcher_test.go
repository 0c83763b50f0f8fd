package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bank-accounts-service/internal/config"
	"github.com/bank-accounts-service/internal/domain/outbox"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	args := m.Called(ctx, id, processedAt)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetByID(ctx context.Context, id uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepo) WithTx(_ pgx.Tx) outbox.Repository {
	return m
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, headers map[string]string, value []byte) error {
	args := m.Called(ctx, routingKey, headers, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Record(ctx context.Context, msg *outbox.Message, publishedAt time.Time) error {
	args := m.Called(ctx, msg, publishedAt)
	return args.Error(0)
}

func pendingMessage(eventType string) *outbox.Message {
	return &outbox.Message{
		ID:            uuid.New(),
		Type:          eventType,
		Payload:       json.RawMessage(`{"eventId":"test"}`),
		OccurredAt:    time.Now().UTC(),
		Source:        "account-service",
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
	}
}

func newTestDispatcher(repo *MockOutboxRepo, publisher *MockPublisher, archive *MockArchiver) *Dispatcher {
	cfg := &config.OutboxConfig{
		PollingInterval:    time.Second,
		BatchSize:          10,
		MaxPublishAttempts: 3,
		RetryBackoff:       time.Millisecond,
	}
	return NewDispatcher(cfg, repo, publisher, archive, newTestLogger())
}

func TestDispatcher_DispatchPending(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes, archives and marks each message processed", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		first := pendingMessage("AccountOpened")
		second := pendingMessage("MoneyCredited")
		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{first, second}, nil).Once()

		var headers map[string]string
		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(first.Payload)).
			Run(func(args mock.Arguments) { headers = args.Get(2).(map[string]string) }).
			Return(nil).Once()
		publisher.On("Publish", mock.Anything, "money.credited", mock.Anything, []byte(second.Payload)).
			Return(nil).Once()

		archive.On("Record", mock.Anything, first, mock.AnythingOfType("time.Time")).Return(nil).Once()
		archive.On("Record", mock.Anything, second, mock.AnythingOfType("time.Time")).Return(nil).Once()

		repo.On("MarkProcessed", mock.Anything, first.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("MarkProcessed", mock.Anything, second.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		err := d.DispatchPending(ctx)
		require.NoError(t, err)

		require.NotNil(t, headers)
		assert.Equal(t, first.ID.String(), headers["event-id"])
		assert.Equal(t, "AccountOpened", headers["event-type"])
		assert.Equal(t, first.CorrelationID.String(), headers["correlation-id"])
		assert.Equal(t, first.CausationID.String(), headers["causation-id"])

		repo.AssertExpectations(t)
		publisher.AssertExpectations(t)
		archive.AssertExpectations(t)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()

		err := d.DispatchPending(ctx)
		assert.NoError(t, err)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		d := newTestDispatcher(repo, &MockPublisher{}, &MockArchiver{})

		dbErr := errors.New("query error")
		repo.On("GetPending", mock.Anything, 10).Return(nil, dbErr).Once()

		err := d.DispatchPending(ctx)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("exhausted publish attempts leave the message pending", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		msg := pendingMessage("AccountOpened")
		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()

		brokerErr := errors.New("broker unavailable")
		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(msg.Payload)).
			Return(brokerErr).Times(3)

		err := d.DispatchPending(ctx)
		assert.NoError(t, err)

		publisher.AssertExpectations(t)
		repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
		archive.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("retries until the publish succeeds", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		msg := pendingMessage("AccountOpened")
		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()

		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(msg.Payload)).
			Return(errors.New("broker unavailable")).Twice()
		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(msg.Payload)).
			Return(nil).Once()

		archive.On("Record", mock.Anything, msg, mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("MarkProcessed", mock.Anything, msg.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		err := d.DispatchPending(ctx)
		assert.NoError(t, err)
		publisher.AssertExpectations(t)
		repo.AssertExpectations(t)
	})

	t.Run("archive failure does not block marking processed", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		msg := pendingMessage("AccountOpened")
		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{msg}, nil).Once()
		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(msg.Payload)).Return(nil).Once()
		archive.On("Record", mock.Anything, msg, mock.AnythingOfType("time.Time")).
			Return(errors.New("mongo unavailable")).Once()
		repo.On("MarkProcessed", mock.Anything, msg.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		err := d.DispatchPending(ctx)
		assert.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("one failing message does not stop the batch", func(t *testing.T) {
		repo := &MockOutboxRepo{}
		publisher := &MockPublisher{}
		archive := &MockArchiver{}
		d := newTestDispatcher(repo, publisher, archive)

		failing := pendingMessage("AccountOpened")
		healthy := pendingMessage("MoneyCredited")
		repo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{failing, healthy}, nil).Once()

		publisher.On("Publish", mock.Anything, "account.opened", mock.Anything, []byte(failing.Payload)).
			Return(errors.New("broker unavailable")).Times(3)
		publisher.On("Publish", mock.Anything, "money.credited", mock.Anything, []byte(healthy.Payload)).
			Return(nil).Once()

		archive.On("Record", mock.Anything, healthy, mock.AnythingOfType("time.Time")).Return(nil).Once()
		repo.On("MarkProcessed", mock.Anything, healthy.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		err := d.DispatchPending(ctx)
		assert.NoError(t, err)
		repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, failing.ID, mock.Anything)
	})
}
