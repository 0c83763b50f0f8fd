// Package consumer handles inbound control events from the message bus.
// Unprocessable messages are quarantined in the dead-letter table and the
// offset committed; transient faults leave the offset uncommitted so the
// broker redelivers.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bank-accounts-service/internal/domain/events"
	"github.com/bank-accounts-service/internal/domain/inbox"
)

// ErrUnknownRoutingKey indicates a control message this service does not handle
type ErrUnknownRoutingKey struct {
	RoutingKey string
}

func (e ErrUnknownRoutingKey) Error() string {
	return "unknown routing key: " + e.RoutingKey
}

// BlockingService applies client blocking decisions idempotently
type BlockingService interface {
	FreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error
	UnfreezeAccountsOfClient(ctx context.Context, eventID, clientID uuid.UUID) error
}

// ControlEventHandler routes client.blocked and client.unblocked messages
type ControlEventHandler struct {
	blockingService BlockingService
	inboxRepo       inbox.Repository
	logger          *slog.Logger
}

// NewControlEventHandler creates a new handler
func NewControlEventHandler(
	logger *slog.Logger,
	blockingService BlockingService,
	inboxRepo inbox.Repository,
) *ControlEventHandler {
	return &ControlEventHandler{
		blockingService: blockingService,
		inboxRepo:       inboxRepo,
		logger:          logger,
	}
}

// HandleMessage processes one control message. The message key carries the
// routing key. A nil return commits the offset; an error return leaves it
// uncommitted for redelivery.
func (h *ControlEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	routingKey := string(key)

	var payload events.ClientBlocking
	if err := json.Unmarshal(value, &payload); err != nil {
		h.logger.Error("Failed to unmarshal control event",
			"routing_key", routingKey,
			"error", err,
		)
		return h.quarantine(ctx, routingKey, value, err)
	}
	if payload.EventID == uuid.Nil || payload.ClientID == uuid.Nil {
		err := errors.New("control event missing eventId or clientId")
		h.logger.Error("Rejected control event", "routing_key", routingKey, "error", err)
		return h.quarantine(ctx, routingKey, value, err)
	}

	logger := h.logger.With(
		"routing_key", routingKey,
		"event_id", payload.EventID.String(),
		"client_id", payload.ClientID.String(),
	)
	logger.Info("Received control event")

	var err error
	switch routingKey {
	case events.RoutingKeyClientBlocked:
		err = h.blockingService.FreezeAccountsOfClient(ctx, payload.EventID, payload.ClientID)
	case events.RoutingKeyClientUnblocked:
		err = h.blockingService.UnfreezeAccountsOfClient(ctx, payload.EventID, payload.ClientID)
	default:
		logger.Error("Unknown control routing key")
		return h.quarantine(ctx, routingKey, value, ErrUnknownRoutingKey{RoutingKey: routingKey})
	}
	if err != nil {
		// Constraint and data errors will not heal on redelivery; quarantine
		// them. Anything else is assumed transient and left for retry.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			logger.Error("Control event failed with a database constraint error", "error", err)
			return h.quarantine(ctx, routingKey, value, err)
		}
		logger.Error("Failed to process control event, leaving offset uncommitted", "error", err)
		return fmt.Errorf("processing control event %s failed: %w", payload.EventID.String(), err)
	}

	logger.Info("Successfully processed control event")
	return nil // Success, commit offset
}

// quarantine stores the raw message in the dead-letter table. A nil return
// commits the offset so the poison message is not redelivered; if even the
// quarantine write fails the original error is surfaced for redelivery.
func (h *ControlEventHandler) quarantine(ctx context.Context, routingKey string, value []byte, cause error) error {
	dead := inbox.NewDeadMessage(routingKey, string(value), cause.Error())
	if err := h.inboxRepo.CreateDead(ctx, dead); err != nil {
		h.logger.Error("Failed to quarantine control event",
			"routing_key", routingKey,
			"quarantine_error", err,
			"original_error", cause,
		)
		return fmt.Errorf("failed to quarantine unprocessable message: %w", cause)
	}

	h.logger.Info("Quarantined unprocessable control event",
		"routing_key", routingKey,
		"dead_letter_id", dead.ID.String(),
		"reason", cause.Error(),
	)
	return nil
}
