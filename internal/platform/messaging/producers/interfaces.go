package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// EventPublisher publishes domain events to the account events topic
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, headers map[string]string, value []byte) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
