package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the subset of *kafka.Writer used for push delivery.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// pushPayload is the record a push gateway consumes for background delivery.
type pushPayload struct {
	Notification
	RecipientID string    `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Kafka publishes push payloads keyed by conversation id, so every alert
// for one conversation lands on the same partition.
type Kafka struct {
	writer      messageWriter
	recipientID func() string
	logger      *zap.Logger
}

// NewKafka creates a push notifier writing to topic on brokers.
// recipientID reports the signed-in user the pushes are addressed to.
func NewKafka(brokers []string, topic string, recipientID func() string, logger *zap.Logger) *Kafka {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafka(w, recipientID, logger)
}

func newKafka(w messageWriter, recipientID func() string, logger *zap.Logger) *Kafka {
	return &Kafka{writer: w, recipientID: recipientID, logger: logger}
}

func (k *Kafka) Notify(ctx context.Context, n Notification) error {
	payload := pushPayload{Notification: n, CreatedAt: time.Now().UTC()}
	if k.recipientID != nil {
		payload.RecipientID = k.recipientID()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.ConversationID),
		Value: data,
	}); err != nil {
		return fmt.Errorf("publish push: %w", err)
	}
	k.logger.Debug("push published", zap.String("conversation_id", n.ConversationID))
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
