package consumers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bank-accounts-service/internal/config"
	"github.com/segmentio/kafka-go"
)

// fetchRetryDelay is how long the loop waits after a failed fetch before
// asking the broker again.
const fetchRetryDelay = time.Second

// MessageHandler processes one control message. A nil return commits the
// offset; an error keeps it uncommitted so the broker redelivers the message.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer is the control-event consumption surface used by main
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

// KafkaConsumer reads the control topic one message at a time. The reader is
// bound to the configured topic and consumer group at construction.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *slog.Logger
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		logger: logger,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.ControlTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		}),
	}
}

// Consume fetches control messages and commits each offset only after the
// handler accepts the message. It blocks until ctx is canceled and returns
// nil on a clean shutdown.
func (c *KafkaConsumer) Consume(ctx context.Context, handler MessageHandler) error {
	readerCfg := c.reader.Config()
	c.logger.Info("Consuming control events",
		"topic", readerCfg.Topic,
		"group_id", readerCfg.GroupID,
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Control consumer stopping", "topic", readerCfg.Topic)
				return nil
			}
			c.logger.Error("Failed to fetch control message",
				"topic", readerCfg.Topic,
				"error", err,
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			// Offset stays uncommitted; the broker redelivers the message
			c.logger.Error("Control message handling failed",
				"key", string(msg.Key),
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Failed to commit control message offset",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
