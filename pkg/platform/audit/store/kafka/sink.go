// Package kafka forwards audit events to a Kafka topic as JSON records keyed by user.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"skillbadge/internal/platform/kafka/producer"
	audit "skillbadge/pkg/platform/audit"
)

// DefaultTopic receives badge issuance audit events.
const DefaultTopic = "badge.audit"

// Producer is the subset of the platform producer used by the sink.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Sink publishes audit events to Kafka.
type Sink struct {
	producer Producer
	topic    string
}

// New creates a sink that writes to topic (DefaultTopic when empty).
func New(p Producer, topic string) *Sink {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Sink{producer: p, topic: topic}
}

// Append serializes the event and produces it synchronously.
func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(event.UserID.String()),
		Value: payload,
		Headers: map[string]string{
			"action":     event.Action,
			"attempt_id": event.AttemptID.String(),
		},
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
