package attempt

import (
	"context"
	"sort"
	"sync"
	"time"

	"skillbadge/internal/badge/models"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/sentinel"
)

// InMemoryStore keeps attempts in memory for tests and local runs.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts map[id.AttemptID]*models.Attempt
}

// NewInMemory constructs an empty attempt journal.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{attempts: make(map[id.AttemptID]*models.Attempt)}
}

func (s *InMemoryStore) Create(_ context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; ok {
		return sentinel.ErrConflict
	}
	s.attempts[a.ID] = clone(a)
	return nil
}

func (s *InMemoryStore) Save(_ context.Context, a *models.Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[a.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.attempts[a.ID] = clone(a)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, attemptID id.AttemptID) (*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[attemptID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(a), nil
}

func (s *InMemoryStore) LatestByFingerprint(_ context.Context, userID id.UserID, fingerprint string) (*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.Attempt
	for _, a := range s.attempts {
		if a.UserID != userID || a.Fingerprint != fingerprint {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(latest), nil
}

func (s *InMemoryStore) ListByState(_ context.Context, state models.State, updatedBefore time.Time, limit int) ([]*models.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Attempt
	for _, a := range s.attempts {
		if a.State == state && a.UpdatedAt.Before(updatedBefore) {
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
