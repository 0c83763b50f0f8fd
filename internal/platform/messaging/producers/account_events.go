package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bank-accounts-service/internal/config"
	"github.com/segmentio/kafka-go"
)

// AccountEventProducer publishes account domain events. Writes are synchronous
// with full acknowledgement because the outbox dispatcher marks a message
// processed only after a confirmed publish.
type AccountEventProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewAccountEventProducer creates the events producer and ensures the topic exists
func NewAccountEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*AccountEventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for account event producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{}, // Same routing key lands on the same partition
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &AccountEventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

// Publish writes one already serialized event keyed by its routing key. The
// returned error is nil only when the broker acknowledged the write.
func (p *AccountEventProducer) Publish(ctx context.Context, routingKey string, headers map[string]string, value []byte) error {
	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	msg := kafka.Message{
		Key:     []byte(routingKey),
		Value:   value,
		Headers: kafkaHeaders,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish account event",
			"topic", p.topic,
			"routing_key", routingKey,
			"error", err,
		)
		return fmt.Errorf("failed to publish account event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published account event",
		"topic", p.topic,
		"routing_key", routingKey,
	)
	return nil
}

func (p *AccountEventProducer) Close() error {
	p.logger.Info("Closing account event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
