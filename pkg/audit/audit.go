// Package audit publishes order activity events to a Kafka topic. The topic
// is a fire-and-forget sink: publishing never blocks the caller and a failed
// publish is logged, not surfaced, so it can never roll back an order
// mutation.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Lifecycle event kinds recorded on the activity topic.
const (
	KindOrderCreated    = "order.created"
	KindOrderConfirmed  = "order.confirmed"
	KindOrderShipped    = "order.shipped"
	KindOrderCancelled  = "order.cancelled"
	KindOrderDelivered  = "order.delivered"
	KindOrderCompleted  = "order.completed"
	KindPaymentCaptured = "payment.captured"
	KindPaymentRefunded = "payment.refunded"
	KindCheckoutStarted = "checkout.started"
	KindDeliveryUpdated = "delivery.updated"
)

type Event struct {
	Kind      string            `json:"kind"`
	OrderID   string            `json:"order_id"`
	Actor     string            `json:"actor"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type Publisher struct {
	logger *slog.Logger
	writer *kafka.Writer
}

func NewPublisher(logger *slog.Logger, cfg Config) *Publisher {
	p := &Publisher{
		logger: logger.With(slog.String("component", "audit")),
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: cfg.BatchTimeout,
		// One extra delivery attempt at most, then the event is dropped.
		MaxAttempts: 2,
		Async:       true,
		Completion:  p.completion,
	}
	return p
}

// Record enqueues an activity event. The write is asynchronous; errors are
// reported through the completion callback and only logged.
func (p *Publisher) Record(ctx context.Context, kind, orderID, actor string, metadata map[string]string) {
	ev := Event{
		Kind:      kind,
		OrderID:   orderID,
		Actor:     actor,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}

	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal audit event", slog.Any("error", err), slog.String("kind", kind))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: value,
	})
	if err != nil {
		p.logger.Error("failed to enqueue audit event",
			slog.Any("error", err),
			slog.String("kind", kind),
			slog.String("order_id", orderID),
		)
	}
}

func (p *Publisher) completion(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range messages {
		p.logger.Error("audit event dropped",
			slog.Any("error", err),
			slog.String("order_id", string(m.Key)),
		)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
