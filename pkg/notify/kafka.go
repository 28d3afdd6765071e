package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dishpatch/dishpatch/pkg/logger"
)

// KafkaConfig holds settings for the Kafka notification sender.
type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// DefaultKafkaConfig returns settings for a local broker.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "dishpatch.notifications",
		WriteTimeout: 10 * time.Second,
	}
}

// notificationEvent is the wire format published to the notification topic.
type notificationEvent struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaNotifier publishes notifications to a Kafka topic consumed by the
// push delivery service.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    logger.Logger
}

// NewKafkaNotifier creates a Kafka-backed notifier.
func NewKafkaNotifier(cfg KafkaConfig, log logger.Logger) *KafkaNotifier {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: timeout,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{writer: writer, log: log}
}

// Send publishes the notification event. The message key is left empty so
// notifications spread across partitions.
func (n *KafkaNotifier) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(notificationEvent{Message: text, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := n.writer.WriteMessages(ctx, kafka.Message{Value: payload}); err != nil {
		n.log.Error("notification publish failed", "topic", n.writer.Topic, "error", err)
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
