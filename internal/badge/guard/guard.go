// Package guard enforces a single in-flight issuance per user.
package guard

import (
	"context"

	platformsync "skillbadge/pkg/platform/sync"
)

// Memory is a process-local guard. Use Redis when more than one replica
// serves issuance requests.
type Memory struct {
	keys *platformsync.KeyedGuard
}

// NewMemory creates a process-local guard.
func NewMemory() *Memory {
	return &Memory{keys: platformsync.NewKeyedGuard()}
}

func (m *Memory) TryAcquire(_ context.Context, key string) (func(), error) {
	return m.keys.TryAcquire(key)
}

// Held reports whether key is currently claimed.
func (m *Memory) Held(key string) bool {
	return m.keys.Held(key)
}
