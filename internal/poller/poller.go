package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// CartClearer is the part of the cart store the poller needs.
type CartClearer interface {
	ClearBefore(ctx context.Context, sessionID string, cutoff time.Time) (int, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller re-clears carts from checkout.succeeded events, so a cart that could not be
// cleared while the payment was being confirmed does not survive the order. Only entries
// last changed at or before the event's completion time are removed; anything the session
// put in the cart after paying is kept, however late the event is consumed.
type Poller struct {
	reader messageReader
	carts  CartClearer
	log    logrus.FieldLogger
}

func NewPoller(carts CartClearer, topic, groupID string, log logrus.FieldLogger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{reader: reader, carts: carts, log: log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.clearFromNextMessage(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.WithError(err).Warn("error closing reader")
	}
}

func (p *Poller) clearFromNextMessage(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.log.WithError(err).Warn("error reading message")
		}
		return
	}

	if eventType(m) != publisher.EventCheckoutSucceeded {
		return
	}

	var event publisher.CheckoutSucceeded
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.WithError(err).Warn("error parsing message")
		return
	}
	if event.SessionID == "" || event.CompletedAt.IsZero() {
		p.log.WithField("order_id", event.OrderID).Warn("checkout event without session id or completion time")
		return
	}

	log := p.log.WithField("order_id", event.OrderID)
	removed, err := p.carts.ClearBefore(ctx, event.SessionID, event.CompletedAt)
	if err != nil {
		log.WithError(err).Error("failed to clear cart")
		return
	}
	if removed > 0 {
		log.WithField("removed", removed).Info("cleared cart entries left after checkout")
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
