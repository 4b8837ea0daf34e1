package profile

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
	"skillbadge/pkg/testutil"
)

const testWallet = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

// seedFunc creates a profile with a linked wallet and returns its ID.
type seedFunc func(t *testing.T) id.UserID

func testBadge(tokenID string) models.BadgeRecord {
	return testutil.NewTestBadge("backend", tokenID)
}

// runStoreContract exercises the error contract every Store must honour.
func runStoreContract(t *testing.T, store Store, seed seedFunc) {
	ctx := context.Background()

	t.Run("append then list", func(t *testing.T) {
		userID := seed(t)
		require.NoError(t, store.AppendBadge(ctx, userID, testBadge("1")))
		require.NoError(t, store.AppendBadge(ctx, userID, testBadge("2")))

		badges, err := store.ListBadges(ctx, userID)
		require.NoError(t, err)
		require.Len(t, badges, 2)
		assert.Equal(t, "1", badges[0].TokenID)
		assert.Equal(t, "backend", badges[0].Cluster)
		assert.True(t, badges[0].MintedAt.Equal(testBadge("1").MintedAt))
	})

	t.Run("duplicate token conflicts and keeps one record", func(t *testing.T) {
		userID := seed(t)
		require.NoError(t, store.AppendBadge(ctx, userID, testBadge("7")))
		err := store.AppendBadge(ctx, userID, testBadge("7"))
		require.ErrorIs(t, err, sentinel.ErrConflict)

		badges, err := store.ListBadges(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, badges, 1)
	})

	t.Run("same token on different users is allowed", func(t *testing.T) {
		a, b := seed(t), seed(t)
		require.NoError(t, store.AppendBadge(ctx, a, testBadge("9")))
		require.NoError(t, store.AppendBadge(ctx, b, testBadge("9")))
	})

	t.Run("missing profile", func(t *testing.T) {
		ghost := id.UserID("user_missing")
		assert.ErrorIs(t, store.AppendBadge(ctx, ghost, testBadge("1")), sentinel.ErrNotFound)
		_, err := store.ListBadges(ctx, ghost)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.WalletAddress(ctx, ghost)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("wallet address", func(t *testing.T) {
		userID := seed(t)
		wallet, err := store.WalletAddress(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, testWallet, wallet)
	})

	t.Run("concurrent appends of one token record it once", func(t *testing.T) {
		userID := seed(t)
		result := testutil.RunConcurrent(20, func(int) error {
			return store.AppendBadge(ctx, userID, testBadge("42"))
		})
		assert.Equal(t, int32(1), result.Successes)
		assert.Equal(t, int32(19), result.Conflicts)

		badges, err := store.ListBadges(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, badges, 1)
	})

	t.Run("concurrent appends of distinct tokens all land", func(t *testing.T) {
		userID := seed(t)
		result := testutil.RunConcurrent(10, func(i int) error {
			return store.AppendBadge(ctx, userID, testBadge(fmt.Sprintf("t%d", i)))
		})
		assert.Equal(t, int32(10), result.Successes)

		badges, err := store.ListBadges(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, badges, 10)
	})
}
