// Package kafka holds Kafka checks shared by the server and the CLI.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// TopicChecker verifies the brokers are reachable and a topic exists.
type TopicChecker struct {
	admin *kadm.Client
	topic string
}

// NewTopicChecker creates a checker that reuses client's connections.
func NewTopicChecker(client *kgo.Client, topic string) *TopicChecker {
	return &TopicChecker{
		admin: kadm.NewClient(client),
		topic: topic,
	}
}

// Check returns nil when the topic exists and has at least one partition.
func (c *TopicChecker) Check(ctx context.Context) error {
	topics, err := c.admin.ListTopics(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	detail, ok := topics[c.topic]
	if !ok || detail.Err != nil {
		return fmt.Errorf("kafka topic %s not available", c.topic)
	}
	if len(detail.Partitions) == 0 {
		return fmt.Errorf("kafka topic %s has no partitions", c.topic)
	}
	return nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (c *TopicChecker) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	if err := c.Check(ctx); err == nil {
		return nil
	}
	resp, err := c.admin.CreateTopic(ctx, partitions, replicationFactor, nil, c.topic)
	if err != nil {
		return fmt.Errorf("create kafka topic %s: %w", c.topic, err)
	}
	if resp.Err != nil {
		return fmt.Errorf("create kafka topic %s: %w", c.topic, resp.Err)
	}
	return nil
}

// Name returns the check name for health reporting.
func (c *TopicChecker) Name() string {
	return "kafka"
}
