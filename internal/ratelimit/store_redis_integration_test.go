//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/pkg/testutil/containers"
)

func TestRedisAllow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.Flush(ctx))

	t.Run("admits up to the limit across instances", func(t *testing.T) {
		a, b := NewRedis(rc.Client), NewRedis(rc.Client)

		res, err := a.Allow(ctx, "upload:user_a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, res.Remaining)

		res, err = b.Allow(ctx, "upload:user_a", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)

		res, err = a.Allow(ctx, "upload:user_a", 2, time.Minute)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Positive(t, res.RetryAfter)
		assert.LessOrEqual(t, res.RetryAfter, 60)
	})

	t.Run("window expires", func(t *testing.T) {
		r := NewRedis(rc.Client)
		res, err := r.Allow(ctx, "upload:user_b", 1, 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, res.Allowed)

		require.Eventually(t, func() bool {
			res, err := r.Allow(ctx, "upload:user_b", 1, 100*time.Millisecond)
			return err == nil && res.Allowed
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("keys expire with the window", func(t *testing.T) {
		r := NewRedis(rc.Client)
		_, err := r.Allow(ctx, "upload:user_c", 5, time.Minute)
		require.NoError(t, err)
		ttl := rc.Client.PTTL(ctx, redisKeyPrefix+"upload:user_c").Val()
		assert.Positive(t, ttl)
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}
