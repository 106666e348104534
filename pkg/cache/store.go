// Package cache provides the two-tier cache shared by the geocoder, the
// router and the match engine: a small in-process LRU (L1) in front of a
// remote store (L2). Entries are grouped into namespaces with fixed TTL
// policies, and a failing L2 backend degrades the cache to L1-only
// operation instead of failing lookups.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// RemoteStore is the shared L2 tier. Implementations must be safe for
// concurrent use. Get reports the remaining TTL so the caller can bound
// the lifetime of promoted L1 copies.
type RemoteStore interface {
	Get(ctx context.Context, key string) (val []byte, remaining time.Duration, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Key builds a namespaced cache key from its logical parts. Parts are
// joined and digested so that arbitrarily long addresses and coordinate
// tuples produce bounded keys.
func Key(namespace string, parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return namespace + ":" + hex.EncodeToString(sum[:])
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

// MemoryStore is an in-process RemoteStore used for the "memory" backend
// and for tests. It behaves like a remote store with zero latency.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, time.Duration, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, 0, false, nil
	}
	remaining := entry.expiresAt.Sub(s.now())
	if remaining <= 0 {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, 0, false, nil
	}
	return entry.val, remaining, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	cp := make([]byte, len(val))
	copy(cp, val)
	s.mu.Lock()
	s.entries[key] = memoryEntry{val: cp, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of live entries, expired ones included until
// their next lookup.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
