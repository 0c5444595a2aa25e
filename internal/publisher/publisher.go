package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const EventCheckoutSucceeded = "checkout.succeeded"

type Item struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CheckoutSucceeded struct {
	OrderID        string          `json:"order_id"`
	SessionID      string          `json:"session_id"`
	PaymentID      string          `json:"payment_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	BasketID       string          `json:"basket_id,omitempty"`
	PaymentMethod  string          `json:"payment_method"`
	PaidPrice      decimal.Decimal `json:"paid_price"`
	Currency       string          `json:"currency,omitempty"`
	Items          []Item          `json:"items,omitempty"`
	CompletedAt    time.Time       `json:"completed_at"`
}

type EventPublisher interface {
	PublishCheckoutSucceeded(ctx context.Context, event CheckoutSucceeded) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// New returns a Kafka publisher, or a no-op one when no brokers are configured.
func New(topic string, brokers ...string) EventPublisher {
	if len(brokers) == 0 {
		return NoopPublisher{}
	}
	return NewKafkaPublisher(topic, brokers...)
}

// writeBatchTimeout caps how long a synchronous publish waits to fill a batch (the writer default is 1s).
const writeBatchTimeout = 10 * time.Millisecond

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           writeBatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishCheckoutSucceeded(ctx context.Context, event CheckoutSucceeded) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.OrderID), // keeps events of one order in one partition
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCheckoutSucceeded)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish checkout event %s: %w", event.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NoopPublisher struct{}

func (NoopPublisher) PublishCheckoutSucceeded(context.Context, CheckoutSucceeded) error { return nil }

func (NoopPublisher) Close() error { return nil }
