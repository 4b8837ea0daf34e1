package attempt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/badge/models"
)

func TestInMemoryStore(t *testing.T) {
	runStoreContract(t, NewInMemory())
}

func TestInMemoryStore_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	a := models.NewAttempt("user_a", "fp", base)
	a.Receipt = &models.MintReceipt{TokenID: "1"}
	require.NoError(t, store.Create(ctx, a))

	a.Receipt.TokenID = "mutated"
	got, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Receipt.TokenID)
}
