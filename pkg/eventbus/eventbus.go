// Package eventbus publishes event lifecycle messages to Kafka so other campus
// systems (signage, calendars) can follow approvals and cancellations.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Message is the JSON value written for every lifecycle change. The Kafka key
// is the event id, so all messages of one event land on one partition in order.
type Message struct {
	Type       string    `json:"type"`
	EventID    uuid.UUID `json:"event_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Date       string    `json:"date"`
	Venue      string    `json:"venue"`
	OccurredAt time.Time `json:"occurred_at"`
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes lifecycle messages. A Publisher without brokers drops them.
type Publisher struct {
	w      writer
	topic  string
	logger *zap.Logger
}

// New creates a publisher for topic. With no brokers it returns a no-op publisher.
func New(brokers []string, topic string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Publisher{topic: topic, logger: logger}
	if len(brokers) == 0 {
		logger.Info("kafka disabled: no brokers configured")
		return p
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: true,
	}
	logger.Info("kafka publisher ready", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return p
}

// Enabled reports whether messages are actually written.
func (p *Publisher) Enabled() bool { return p != nil && p.w != nil }

// Publish writes one message keyed by its event id.
func (p *Publisher) Publish(ctx context.Context, m Message) error {
	if !p.Enabled() {
		return nil
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(m.EventID.String()),
		Value: value,
		Time:  m.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.w.Close()
}
