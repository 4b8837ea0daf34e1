//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/config"
	"skillbadge/pkg/testutil/containers"
)

func TestClient(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{
		URL:         "redis://" + rc.Addr,
		PoolSize:    4,
		DialTimeout: 2 * time.Second,
	}, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(ctx))

	client.RecordPoolStats()
	assert.GreaterOrEqual(t, testutil.ToFloat64(client.metrics.totalConns), 1.0)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "not a url"}, prometheus.NewRegistry())
	require.Error(t, err)
}
