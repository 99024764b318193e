package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/segmentio/kafka-go"
)

// relayEnvelope is the shape the webhook relay publishes: the event name
// plus the platform's order payload, untouched.
type relayEnvelope struct {
	Event EventType         `json:"event"`
	Order OrderEventPayload `json:"order"`
}

// Consumer drains relayed platform order events. It exists so a missed or
// out-of-order webhook delivery can be replayed from the topic; Apply being
// idempotent makes the double delivery harmless.
type Consumer struct {
	service *Service
	reader  *kafka.Reader
}

func NewConsumer(service *Service, brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{service: service, reader: reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		log.Printf("error closing kafka reader: %v", err)
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Printf("error reading message: %v", err)
		return
	}

	var envelope relayEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		log.Printf("error parsing message: %v", err)
		return
	}

	n := envelope.Order.ToNotification(envelope.Event)
	if err := c.service.Apply(ctx, n); err != nil {
		log.Printf("failed to apply order event %s for order %s: %v", envelope.Event, n.PlatformOrderID, err)
	}
}
