// Package profile appends badges to user profiles.
//
// Error contract shared by every implementation:
//   - AppendBadge returns sentinel.ErrConflict when the token is already on the
//     profile and sentinel.ErrNotFound when the profile does not exist
//   - WalletAddress returns sentinel.ErrNotFound when no address is linked
//   - infrastructure failures are wrapped with context and never mapped to
//     a sentinel
package profile

import (
	"context"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
)

// Store is the profile persistence port used by the issuance saga and the
// ledger signer.
type Store interface {
	AppendBadge(ctx context.Context, userID id.UserID, badge models.BadgeRecord) error
	ListBadges(ctx context.Context, userID id.UserID) ([]models.BadgeRecord, error)
	WalletAddress(ctx context.Context, userID id.UserID) (string, error)
}
