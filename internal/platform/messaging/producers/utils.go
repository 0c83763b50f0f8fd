package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadDelay    = 2 * time.Second
)

// ensureTopic creates the topic when the broker does not know it yet. A broker
// that is still electing a controller can briefly report no partitions, so
// the read is retried before concluding the topic is missing.
func ensureTopic(conn *kafka.Conn, topic string, partitions, replicationFactor int, log *slog.Logger) error {
	var existing []kafka.Partition
	var err error

	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		existing, err = conn.ReadPartitions(topic)
		if err == nil {
			break
		}
		log.Warn("Reading topic partitions failed",
			"topic", topic,
			"attempt", attempt,
			"error", err,
		)
		time.Sleep(partitionReadDelay)
	}

	if len(existing) > 0 {
		log.Debug("Kafka topic present", "topic", topic, "partitions", len(existing))
		return nil
	}

	if partitions <= 0 {
		partitions = 1
	}
	if replicationFactor <= 0 {
		replicationFactor = 1
	}

	if err := conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	}); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}

	log.Info("Created Kafka topic",
		"topic", topic,
		"partitions", partitions,
		"replication_factor", replicationFactor,
	)
	return nil
}
