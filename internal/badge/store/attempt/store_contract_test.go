package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/badge/models"
	"skillbadge/internal/badge/ports"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func runStoreContract(t *testing.T, store ports.AttemptStore) {
	ctx := context.Background()

	t.Run("create find save", func(t *testing.T) {
		a := models.NewAttempt("user_a", "bafkreifp1", base)
		require.NoError(t, store.Create(ctx, a))
		assert.ErrorIs(t, store.Create(ctx, a), sentinel.ErrConflict)

		require.NoError(t, a.Transition(models.StateEligible, "", base.Add(time.Second)))
		require.NoError(t, a.Transition(models.StateMinting, "", base.Add(2*time.Second)))
		a.Cluster = "backend"
		a.TxHash = "0xabc"
		require.NoError(t, a.Transition(models.StateMintConfirmed, "", base.Add(3*time.Second)))
		a.Receipt = &models.MintReceipt{TokenID: "5", TokenURI: "ipfs://bafkrei", TxHash: "0xabc", BlockNumber: 12}
		require.NoError(t, a.Transition(models.StatePersisting, "", base.Add(4*time.Second)))
		require.NoError(t, a.Transition(models.StateIssued, "", base.Add(5*time.Second)))
		a.Badge = &models.BadgeRecord{Cluster: "backend", ImageURL: "https://gw/ipfs/bafkrei", TokenID: "5", MintedAt: base.Add(5 * time.Second)}
		require.NoError(t, store.Save(ctx, a))

		got, err := store.FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.UserID, got.UserID)
		assert.Equal(t, models.StateIssued, got.State)
		assert.Equal(t, "0xabc", got.TxHash)
		require.NotNil(t, got.Receipt)
		assert.Equal(t, *a.Receipt, *got.Receipt)
		require.NotNil(t, got.Badge)
		assert.Equal(t, "https://gw/ipfs/bafkrei", got.Badge.ImageURL)
		assert.True(t, got.Badge.MintedAt.Equal(a.Badge.MintedAt))
		assert.True(t, got.UpdatedAt.Equal(base.Add(5*time.Second)))
	})

	t.Run("save unknown attempt", func(t *testing.T) {
		a := models.NewAttempt("user_a", "fp", base)
		assert.ErrorIs(t, store.Save(ctx, a), sentinel.ErrNotFound)
		_, err := store.FindByID(ctx, a.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("latest by fingerprint is scoped to the user", func(t *testing.T) {
		older := models.NewAttempt("user_b", "bafkreifp2", base)
		newer := models.NewAttempt("user_b", "bafkreifp2", base.Add(time.Minute))
		other := models.NewAttempt("user_c", "bafkreifp2", base.Add(time.Hour))
		for _, a := range []*models.Attempt{newer, older, other} {
			require.NoError(t, store.Create(ctx, a))
		}

		got, err := store.LatestByFingerprint(ctx, "user_b", "bafkreifp2")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, got.ID)

		_, err = store.LatestByFingerprint(ctx, id.UserID("user_b"), "unknown")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("list by state filters by age and orders oldest first", func(t *testing.T) {
		var ids []id.AttemptID
		for i := 0; i < 3; i++ {
			a := models.NewAttempt("user_d", "fp-list", base.Add(time.Duration(i)*time.Minute))
			require.NoError(t, a.Transition(models.StateEligible, "", a.CreatedAt))
			require.NoError(t, a.Transition(models.StateMintFailed, models.ReasonUnconfirmed, a.CreatedAt))
			require.NoError(t, store.Create(ctx, a))
			ids = append(ids, a.ID)
		}

		got, err := store.ListByState(ctx, models.StateMintFailed, base.Add(90*time.Second), 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, ids[0], got[0].ID)
		assert.Equal(t, ids[1], got[1].ID)
		assert.Equal(t, models.ReasonUnconfirmed, got[0].Reason)

		limited, err := store.ListByState(ctx, models.StateMintFailed, base.Add(time.Hour), 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})
}
