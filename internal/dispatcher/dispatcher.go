// Package dispatcher drains the transactional outbox onto the message bus.
// A message is marked processed only after the broker confirmed the publish,
// so delivery is at-least-once and consumers dedup on the event identifier.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bank-accounts-service/internal/config"
	"github.com/bank-accounts-service/internal/domain/outbox"
	"github.com/bank-accounts-service/internal/platform/messaging/producers"
)

// EventArchiver records published events in the audit archive
type EventArchiver interface {
	Record(ctx context.Context, msg *outbox.Message, publishedAt time.Time) error
}

// Dispatcher polls pending outbox messages and publishes them
type Dispatcher struct {
	outboxRepo         outbox.Repository
	publisher          producers.EventPublisher
	archive            EventArchiver
	logger             *slog.Logger
	pollInterval       time.Duration
	batchSize          int
	maxPublishAttempts int
	retryBackoff       time.Duration
}

func NewDispatcher(
	cfg *config.OutboxConfig,
	outboxRepo outbox.Repository,
	publisher producers.EventPublisher,
	archive EventArchiver,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		outboxRepo:         outboxRepo,
		publisher:          publisher,
		archive:            archive,
		logger:             logger,
		pollInterval:       cfg.PollingInterval,
		batchSize:          cfg.BatchSize,
		maxPublishAttempts: cfg.MaxPublishAttempts,
		retryBackoff:       cfg.RetryBackoff,
	}
}

// Start begins polling until context is canceled
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting outbox dispatcher",
		"poll_interval", d.pollInterval.String(),
		"batch_size", d.batchSize,
		"max_publish_attempts", d.maxPublishAttempts,
	)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Outbox dispatcher stopping due to context cancellation.")
			return
		case <-ticker.C:
			d.logger.Debug("Outbox dispatcher tick: processing pending messages")
			if err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("Error during batch dispatch of pending outbox messages", "error", err)
			}
		}
	}
}

// DispatchPending publishes one batch of pending messages in occurrence order.
// A message that exhausts its publish attempts stays pending and is retried on
// a later tick; it is never dropped or marked failed.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	messages, err := d.outboxRepo.GetPending(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending outbox messages: %w", err)
	}

	if len(messages) == 0 {
		d.logger.Debug("No pending outbox messages found.")
		return nil
	}

	d.logger.Info("Fetched pending outbox messages", "count", len(messages))

	for _, msg := range messages {
		logger := d.logger.With(
			"outbox_id", msg.ID.String(),
			"event_type", msg.Type,
			"correlation_id", msg.CorrelationID.String(),
		)

		if err := d.publishWithRetry(ctx, msg, logger); err != nil {
			logger.Warn("Exhausted publish attempts, message stays pending", "error", err)
			continue
		}

		publishedAt := time.Now().UTC()

		// Archive failures never block the dispatch; the outbox row is the
		// source of truth and the archive upsert is idempotent.
		if err := d.archive.Record(ctx, msg, publishedAt); err != nil {
			logger.Warn("Failed to archive published event", "error", err)
		}

		if err := d.outboxRepo.MarkProcessed(ctx, msg.ID, publishedAt); err != nil {
			logger.Error("Published but failed to mark outbox message processed", "error", err)
			continue
		}

		logger.Info("Dispatched outbox message", "routing_key", msg.RoutingKey())
	}
	return nil
}

func (d *Dispatcher) publishWithRetry(ctx context.Context, msg *outbox.Message, logger *slog.Logger) error {
	headers := map[string]string{
		"event-id":       msg.ID.String(),
		"event-type":     msg.Type,
		"correlation-id": msg.CorrelationID.String(),
		"causation-id":   msg.CausationID.String(),
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxPublishAttempts; attempt++ {
		lastErr = d.publisher.Publish(ctx, msg.RoutingKey(), headers, msg.Payload)
		if lastErr == nil {
			return nil
		}

		logger.Error("Failed to publish outbox message",
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < d.maxPublishAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.retryBackoff * time.Duration(attempt)):
			}
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", d.maxPublishAttempts, lastErr)
}
