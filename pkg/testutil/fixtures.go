package testutil

import (
	"time"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
)

// TestIDs provides fixed user handles for tests.
var TestIDs = struct {
	UserID1 id.UserID
	UserID2 id.UserID
}{
	UserID1: id.UserID("user_2aTestOne"),
	UserID2: id.UserID("user_2aTestTwo"),
}

// FixedNow is a deterministic clock reading for journal timestamps.
var FixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// AttemptBuilder builds journal entries for tests.
type AttemptBuilder struct {
	attempt *models.Attempt
}

// NewAttemptBuilder starts a Verifying attempt for TestIDs.UserID1.
func NewAttemptBuilder() *AttemptBuilder {
	return &AttemptBuilder{
		attempt: models.NewAttempt(TestIDs.UserID1, "bafkreitestfingerprint", FixedNow),
	}
}

func (b *AttemptBuilder) WithUser(userID id.UserID) *AttemptBuilder {
	b.attempt.UserID = userID
	return b
}

func (b *AttemptBuilder) WithFingerprint(fp string) *AttemptBuilder {
	b.attempt.Fingerprint = fp
	return b
}

func (b *AttemptBuilder) WithCluster(cluster string) *AttemptBuilder {
	b.attempt.Cluster = cluster
	return b
}

func (b *AttemptBuilder) InState(state models.State) *AttemptBuilder {
	b.attempt.State = state
	return b
}

func (b *AttemptBuilder) WithReason(reason models.Reason) *AttemptBuilder {
	b.attempt.Reason = reason
	return b
}

func (b *AttemptBuilder) WithTx(txHash string) *AttemptBuilder {
	b.attempt.TxHash = txHash
	return b
}

// Minted attaches a confirmed mint receipt for tokenID.
func (b *AttemptBuilder) Minted(tokenID, tokenURI string) *AttemptBuilder {
	b.attempt.Receipt = &models.MintReceipt{
		TokenID:  tokenID,
		TokenURI: tokenURI,
		TxHash:   b.attempt.TxHash,
	}
	return b
}

func (b *AttemptBuilder) CreatedAt(t time.Time) *AttemptBuilder {
	b.attempt.CreatedAt = t
	b.attempt.UpdatedAt = t
	return b
}

func (b *AttemptBuilder) Build() *models.Attempt {
	return b.attempt
}

// NewTestBadge returns a badge record minted at FixedNow.
func NewTestBadge(cluster, tokenID string) models.BadgeRecord {
	return models.BadgeRecord{
		Cluster:  cluster,
		ImageURL: "https://gateway.example/ipfs/bafkreitestimage",
		TokenID:  tokenID,
		MintedAt: FixedNow,
	}
}
