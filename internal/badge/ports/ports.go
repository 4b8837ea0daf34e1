// Package ports declares the collaborators the issuance saga depends on.
// Adapters live in sibling packages; the service and orchestrator only see
// these interfaces.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"skillbadge/internal/badge/models"
	"skillbadge/internal/badge/verifier"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/audit"
)

// Verifier checks an uploaded certificate. It always returns an outcome; the
// error only classifies why the outcome was synthesized.
type Verifier interface {
	Verify(ctx context.Context, doc verifier.Document, expectedName string) (models.VerificationOutcome, error)
}

// Catalog maps clusters to badge metadata.
// Lookup returns catalog.ErrUnknownCluster when absent.
type Catalog interface {
	Lookup(cluster string) (models.BadgeMetadata, error)
}

// Signer submits mint transactions for a single user's ledger account.
type Signer interface {
	Address() string
	// SubmitMint returns the transaction hash once broadcast.
	SubmitMint(ctx context.Context, cluster string) (string, error)
}

// SignerProvider scopes a Signer to one attempt. release must be called on
// every path, including panics.
type SignerProvider interface {
	Acquire(ctx context.Context, userID id.UserID) (signer Signer, release func(), err error)
}

// Confirmer reads mint results back from the ledger.
type Confirmer interface {
	// AwaitMint blocks until the transaction confirms or the confirmation
	// timeout passes.
	AwaitMint(ctx context.Context, txHash string) (models.MintReceipt, error)
	// CheckMint reads the receipt once.
	CheckMint(ctx context.Context, txHash string) (models.MintReceipt, error)
}

// BadgeStore appends badges to user profiles.
// AppendBadge returns sentinel.ErrConflict when the token is already recorded
// for the user and sentinel.ErrNotFound when the profile does not exist.
type BadgeStore interface {
	AppendBadge(ctx context.Context, userID id.UserID, badge models.BadgeRecord) error
	ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error)
}

// AttemptStore journals issuance attempts.
type AttemptStore interface {
	Create(ctx context.Context, attempt *models.Attempt) error
	Save(ctx context.Context, attempt *models.Attempt) error
	FindByID(ctx context.Context, attemptID id.AttemptID) (*models.Attempt, error)
	LatestByFingerprint(ctx context.Context, userID id.UserID, fingerprint string) (*models.Attempt, error)
	ListByState(ctx context.Context, state models.State, updatedBefore time.Time, limit int) ([]*models.Attempt, error)
}

// Guard admits at most one holder per key. TryAcquire returns
// sentinel.ErrInProgress when the key is already held.
type Guard interface {
	TryAcquire(ctx context.Context, key string) (release func(), err error)
}

// AuditPublisher records issuance events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
