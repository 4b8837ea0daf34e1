package sync

import (
	"sync"

	"skillbadge/pkg/platform/sentinel"
)

const shardCount = 32

type shard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// KeyedGuard is a non-blocking per-key exclusion set. Keys are spread across
// shards by hash so unrelated keys do not contend on one lock.
type KeyedGuard struct {
	shards [shardCount]shard
}

// NewKeyedGuard creates a guard with 32 shards.
func NewKeyedGuard() *KeyedGuard {
	g := &KeyedGuard{}
	for i := range g.shards {
		g.shards[i].held = make(map[string]struct{})
	}
	return g
}

// TryAcquire claims key. It returns sentinel.ErrInProgress when the key is
// already held; the returned release func is idempotent.
func (g *KeyedGuard) TryAcquire(key string) (release func(), err error) {
	s := &g.shards[shardFor(key)]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.held[key]; ok {
		return nil, sentinel.ErrInProgress
	}
	s.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, key)
			s.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently claimed.
func (g *KeyedGuard) Held(key string) bool {
	s := &g.shards[shardFor(key)]
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.held[key]
	return ok
}

// shardFor returns the shard index for the given key.
// Empty keys default to shard 0.
func shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % shardCount)
}

// hashString provides a simple hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
