//go:build integration

package producer_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/kafka/producer"
	"skillbadge/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	prod, err := producer.New(config.KafkaConfig{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *ProducerIntegrationSuite) topic(name string) string {
	return fmt.Sprintf("%s-%d", name, time.Now().UnixNano())
}

func (s *ProducerIntegrationSuite) TestAcknowledgedRecordIsReadable() {
	topic := s.topic("badge.audit.ack")
	s.Require().NoError(s.producer.Produce(context.Background(), &producer.Message{
		Topic: topic,
		Key:   []byte("user_2abc"),
		Value: []byte(`{"action":"badge_issued","token_id":"7"}`),
		Headers: map[string]string{
			"action":     "badge_issued",
			"attempt_id": "4f9c1c1e-8f51-4c49-9e43-0d3c8d0b7a11",
		},
	}))

	records, err := s.kafka.ReadTopicWithin(topic, 1, 10*time.Second)
	s.Require().NoError(err)
	s.Equal("user_2abc", string(records[0].Key))
	s.JSONEq(`{"action":"badge_issued","token_id":"7"}`, string(records[0].Value))
	headers := containers.Headers(records[0])
	s.Equal("badge_issued", headers["action"])
	s.Equal("4f9c1c1e-8f51-4c49-9e43-0d3c8d0b7a11", headers["attempt_id"])
}

// One user's events share a key, so they land on one partition in order.
func (s *ProducerIntegrationSuite) TestSameKeyKeepsOrder() {
	topic := s.topic("badge.audit.order")
	actions := []string{"issuance_requested", "mint_submitted", "badge_issued"}
	for _, action := range actions {
		s.Require().NoError(s.producer.Produce(context.Background(), &producer.Message{
			Topic: topic,
			Key:   []byte("user_order"),
			Value: []byte(action),
		}))
	}

	records, err := s.kafka.ReadTopicWithin(topic, len(actions), 10*time.Second)
	s.Require().NoError(err)
	for i, r := range records {
		s.Equal(actions[i], string(r.Value))
		s.Equal(records[0].Partition, r.Partition)
	}
}

func (s *ProducerIntegrationSuite) TestProducerHealth() {
	s.NoError(s.producer.Health(context.Background()))
}

func (s *ProducerIntegrationSuite) TestClosedProducerRejects() {
	prod, err := producer.New(config.KafkaConfig{Brokers: s.kafka.Brokers, Acks: "1"}, nil)
	s.Require().NoError(err)
	s.Require().NoError(prod.Close())

	s.Error(prod.Produce(context.Background(), &producer.Message{Topic: "closed", Value: []byte("x")}))
	s.Error(prod.Health(context.Background()))
}
