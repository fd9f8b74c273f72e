package notifier

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event types published to the notifications topic.
const (
	EventOrderPaid           = "order.paid"
	EventOrderCancelled      = "order.cancelled"
	EventSubscriptionCreated = "subscription.created"
	EventDeliveryCompleted   = "delivery.completed"
)

// Notifier is the fire-and-forget dispatch collaborator. Failures are logged
// and swallowed; notification delivery never blocks or fails settlement.
type Notifier interface {
	Notify(ctx context.Context, eventType, aggregateID string, payload any)
}

type KafkaNotifier struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaNotifier(topic string, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w, timeout: 5 * time.Second}
}

func (n *KafkaNotifier) Notify(ctx context.Context, eventType, aggregateID string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal %s notification: %v", eventType, err)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(aggregateID), // aggregate id for ordering
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := n.writer.WriteMessages(writeCtx, msg); err != nil {
		log.Printf("failed to publish %s notification for %s: %v", eventType, aggregateID, err)
	}
}

func (n *KafkaNotifier) Close() {
	if err := n.writer.Close(); err != nil {
		log.Printf("error closing kafka writer: %v", err)
	}
}
