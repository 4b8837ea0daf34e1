//go:build integration

package profile

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	id "skillbadge/pkg/domain"
	"skillbadge/pkg/testutil/containers"
)

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	m := containers.GetManager().GetMongo(t)
	const dbName = "skillbadge_profile_test"
	require.NoError(t, m.Drop(ctx, dbName))
	t.Cleanup(func() { _ = m.Drop(context.Background(), dbName) })

	store := NewMongo(m.Database(dbName))
	require.NoError(t, store.EnsureIndexes(ctx))

	var n atomic.Int32
	runStoreContract(t, store, func(t *testing.T) id.UserID {
		userID := id.UserID(fmt.Sprintf("user_mongo_%d", n.Add(1)))
		require.NoError(t, store.SetWallet(ctx, userID, testWallet))
		return userID
	})
}
