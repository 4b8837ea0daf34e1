//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/kafka/producer"
	"skillbadge/pkg/testutil/containers"
)

func TestTopicChecker(t *testing.T) {
	kc := containers.GetManager().GetKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prod, err := producer.New(config.KafkaConfig{Brokers: kc.Brokers}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prod.Close() })

	topic := "badge.audit.health-" + time.Now().Format("150405")
	checker := NewTopicChecker(prod.Client(), topic)
	assert.Equal(t, "kafka", checker.Name())

	require.NoError(t, checker.EnsureTopic(ctx, 1, 1))
	require.NoError(t, checker.Check(ctx))
	require.NoError(t, checker.EnsureTopic(ctx, 1, 1), "ensuring an existing topic is a no-op")
}
