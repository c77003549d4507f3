// Package events publishes messaging lifecycle events to Kafka for the
// platform's notification pipeline. Publishing is best-effort: durable state
// lives only in the message store.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nyirinkindi/eshuri-messaging/internal/domain"
)

const (
	KindMessageCreated = "message.created"
	KindMessageRead    = "message.read"
)

type envelope struct {
	Kind           string      `json:"kind"`
	ConversationID string      `json:"conversation_id"`
	OccurredAt     time.Time   `json:"occurred_at"`
	Payload        interface{} `json:"payload"`
}

type readPayload struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// Publisher writes event envelopes keyed by conversation id, so events of one
// conversation stay in partition order.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &Publisher{writer: w}
}

func (p *Publisher) MessageCreated(ctx context.Context, m *domain.Message) error {
	return p.publish(ctx, envelope{
		Kind:           KindMessageCreated,
		ConversationID: m.ConversationID,
		OccurredAt:     time.Now().UTC(),
		Payload:        m,
	})
}

func (p *Publisher) MessageRead(ctx context.Context, conversationID, userID string, count int64) error {
	return p.publish(ctx, envelope{
		Kind:           KindMessageRead,
		ConversationID: conversationID,
		OccurredAt:     time.Now().UTC(),
		Payload:        readPayload{UserID: userID, Count: count},
	})
}

func (p *Publisher) publish(ctx context.Context, ev envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ConversationID),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
