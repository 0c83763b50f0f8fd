package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bank-accounts-service/internal/domain/events"
	"github.com/bank-accounts-service/internal/domain/inbox"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockBlockingService struct {
	mock.Mock
}

func (m *MockBlockingService) FreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error {
	args := m.Called(ctx, eventID, clientID)
	return args.Error(0)
}

func (m *MockBlockingService) UnfreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error {
	args := m.Called(ctx, eventID, clientID)
	return args.Error(0)
}

type MockInboxRepo struct {
	mock.Mock
}

func (m *MockInboxRepo) CreateConsumed(ctx context.Context, msg *inbox.ConsumedMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockInboxRepo) CreateDead(ctx context.Context, msg *inbox.DeadMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockInboxRepo) WithTx(_ pgx.Tx) inbox.Repository {
	return m
}

func blockingPayload(eventID, clientID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"eventId":%q,"clientId":%q}`, eventID.String(), clientID.String()))
}

func TestControlEventHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	eventID := uuid.New()
	clientID := uuid.New()

	t.Run("client.blocked freezes the client accounts", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		svc.On("FreezeAccountsOfClient", mock.Anything, eventID, clientID).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), blockingPayload(eventID, clientID))
		assert.NoError(t, err)
		svc.AssertExpectations(t)
		inboxRepo.AssertNotCalled(t, "CreateDead", mock.Anything, mock.Anything)
	})

	t.Run("client.unblocked lifts the freeze", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		svc.On("UnfreezeAccountsOfClient", mock.Anything, eventID, clientID).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientUnblocked), blockingPayload(eventID, clientID))
		assert.NoError(t, err)
		svc.AssertExpectations(t)
	})

	t.Run("malformed payload is quarantined and committed", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		var dead *inbox.DeadMessage
		inboxRepo.On("CreateDead", mock.Anything, mock.AnythingOfType("*inbox.DeadMessage")).
			Run(func(args mock.Arguments) { dead = args.Get(1).(*inbox.DeadMessage) }).
			Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), []byte(`{"broken`))
		assert.NoError(t, err)

		require.NotNil(t, dead)
		assert.Equal(t, events.RoutingKeyClientBlocked, dead.Handler)
		assert.Equal(t, `{"broken`, dead.Payload)
		assert.NotEmpty(t, dead.Error)
		svc.AssertNotCalled(t, "FreezeAccountsOfClient", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing identifiers are quarantined", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		inboxRepo.On("CreateDead", mock.Anything, mock.AnythingOfType("*inbox.DeadMessage")).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), blockingPayload(uuid.Nil, clientID))
		assert.NoError(t, err)
		inboxRepo.AssertExpectations(t)
		svc.AssertNotCalled(t, "FreezeAccountsOfClient", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown routing key is quarantined", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		var dead *inbox.DeadMessage
		inboxRepo.On("CreateDead", mock.Anything, mock.AnythingOfType("*inbox.DeadMessage")).
			Run(func(args mock.Arguments) { dead = args.Get(1).(*inbox.DeadMessage) }).
			Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte("client.suspended"), blockingPayload(eventID, clientID))
		assert.NoError(t, err)

		require.NotNil(t, dead)
		assert.Equal(t, "client.suspended", dead.Handler)
		assert.Contains(t, dead.Error, "unknown routing key")
	})

	t.Run("constraint errors are quarantined", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		pgErr := &pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"}
		svc.On("FreezeAccountsOfClient", mock.Anything, eventID, clientID).
			Return(fmt.Errorf("freeze failed: %w", pgErr)).Once()
		inboxRepo.On("CreateDead", mock.Anything, mock.AnythingOfType("*inbox.DeadMessage")).Return(nil).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), blockingPayload(eventID, clientID))
		assert.NoError(t, err)
		inboxRepo.AssertExpectations(t)
	})

	t.Run("transient error leaves the offset uncommitted", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		transient := errors.New("connection reset")
		svc.On("FreezeAccountsOfClient", mock.Anything, eventID, clientID).Return(transient).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), blockingPayload(eventID, clientID))
		assert.Error(t, err)
		assert.ErrorIs(t, err, transient)
		inboxRepo.AssertNotCalled(t, "CreateDead", mock.Anything, mock.Anything)
	})

	t.Run("quarantine write failure surfaces the original cause", func(t *testing.T) {
		svc := &MockBlockingService{}
		inboxRepo := &MockInboxRepo{}
		handler := NewControlEventHandler(newTestLogger(), svc, inboxRepo)

		inboxRepo.On("CreateDead", mock.Anything, mock.AnythingOfType("*inbox.DeadMessage")).
			Return(errors.New("insert error")).Once()

		err := handler.HandleMessage(ctx, []byte(events.RoutingKeyClientBlocked), []byte(`{"broken`))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to quarantine")
	})
}
