//go:build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/config"
	"skillbadge/pkg/testutil/containers"
)

func TestConnect(t *testing.T) {
	mc := containers.GetManager().GetMongo(t)
	ctx := context.Background()

	client, err := Connect(ctx, config.MongoConfig{URI: mc.URI, Database: "skillbadge_connect", Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(ctx) })

	require.NoError(t, client.Health(ctx))
	assert.Equal(t, "skillbadge_connect", client.Database().Name())
}

func TestConnectRequiresURI(t *testing.T) {
	_, err := Connect(context.Background(), config.MongoConfig{})
	require.Error(t, err)
}
