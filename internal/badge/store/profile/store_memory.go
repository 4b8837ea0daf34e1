package profile

import (
	"context"
	"sync"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

type memoryProfile struct {
	wallet string
	badges []models.BadgeRecord
}

// InMemoryStore keeps profiles in memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]*memoryProfile
}

// NewInMemory constructs an empty in-memory profile store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]*memoryProfile)}
}

// SetWallet creates the profile if needed and links wallet to it.
func (s *InMemoryStore) SetWallet(userID id.UserID, wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &memoryProfile{}
		s.profiles[userID] = p
	}
	p.wallet = wallet
}

func (s *InMemoryStore) AppendBadge(_ context.Context, userID id.UserID, badge models.BadgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range p.badges {
		if existing.TokenID == badge.TokenID {
			return sentinel.ErrConflict
		}
	}
	p.badges = append(p.badges, badge)
	return nil
}

func (s *InMemoryStore) ListBadges(_ context.Context, userID id.UserID) ([]models.BadgeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]models.BadgeRecord, len(p.badges))
	copy(out, p.badges)
	return out, nil
}

func (s *InMemoryStore) WalletAddress(_ context.Context, userID id.UserID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok || p.wallet == "" {
		return "", sentinel.ErrNotFound
	}
	return p.wallet, nil
}
