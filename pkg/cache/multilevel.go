package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Bapt252/Nextvision-sub001/pkg/config"
	"github.com/Bapt252/Nextvision-sub001/pkg/health"
)

// Cache namespaces. Each carries its own TTL policy; geocoding is the
// only namespace warmed from disk on startup.
const (
	NSGeocoding   = "geocoding"
	NSRouting     = "routing"
	NSMatchResult = "match_result"
	NSBridge      = "bridge_cache"
)

const defaultL1Size = 1000

// Cacher is the lookup interface the geocoder, router and engine depend
// on. Backend outages never surface as errors: writes degrade to
// L1-only and reads turn into misses.
type Cacher interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool)
	Set(ctx context.Context, namespace, key string, val []byte)
	SetTTL(ctx context.Context, namespace, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, namespace, key string)
}

// Stats counts cache traffic for one namespace.
type Stats struct {
	L1Hits     int64 `json:"l1_hits"`
	L2Hits     int64 `json:"l2_hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	Promotions int64 `json:"promotions"`
}

// StatsSnapshot is a point-in-time copy of all cache counters.
type StatsSnapshot struct {
	Namespaces map[string]Stats `json:"namespaces"`
	L1Entries  int              `json:"l1_entries"`
	Degraded   bool             `json:"degraded"`
}

type l1Entry struct {
	val       []byte
	expiresAt time.Time
}

// MultiLevel layers a per-process LRU over a shared RemoteStore. L2 hits
// are promoted into L1 with a bounded TTL so stale copies cannot outlive
// the remote entry by more than the promote window.
type MultiLevel struct {
	l1             *lru.Cache[string, l1Entry]
	l2             RemoteStore
	ttls           map[string]time.Duration
	promoteTTL     time.Duration
	reconnectEvery time.Duration
	health         *health.Registry

	degraded  atomic.Bool
	lastProbe atomic.Int64

	statsMu sync.Mutex
	stats   map[string]*Stats

	now func() time.Time
}

// NewStore builds the configured L2 backend.
func NewStore(cfg config.CacheConfig) (RemoteStore, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisStore(cfg.Redis), nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// NewMultiLevel wires the L1 tier over the given store. A nil store is
// permitted and leaves the cache in permanent L1-only mode.
func NewMultiLevel(cfg config.CacheConfig, store RemoteStore, reg *health.Registry) (*MultiLevel, error) {
	size := cfg.L1Size
	if size <= 0 {
		size = defaultL1Size
	}
	l1, err := lru.New[string, l1Entry](size)
	if err != nil {
		return nil, fmt.Errorf("creating L1 cache: %w", err)
	}
	return &MultiLevel{
		l1:             l1,
		l2:             store,
		promoteTTL:     cfg.L1PromoteTTL.Std(),
		reconnectEvery: cfg.ReconnectEvery.Std(),
		health:         reg,
		ttls: map[string]time.Duration{
			NSGeocoding:   cfg.TTL.Geocoding.Std(),
			NSRouting:     cfg.TTL.Routing.Std(),
			NSMatchResult: cfg.TTL.MatchResult.Std(),
			NSBridge:      cfg.TTL.Bridge.Std(),
		},
		stats: make(map[string]*Stats),
		now:   time.Now,
	}, nil
}

// TTLFor reports the write TTL for a namespace.
func (c *MultiLevel) TTLFor(namespace string) time.Duration {
	if ttl, ok := c.ttls[namespace]; ok && ttl > 0 {
		return ttl
	}
	return 5 * time.Minute
}

func (c *MultiLevel) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	if entry, ok := c.l1.Get(key); ok {
		if c.now().Before(entry.expiresAt) {
			c.bump(namespace, func(s *Stats) { s.L1Hits++ })
			return entry.val, true
		}
		c.l1.Remove(key)
	}
	if !c.l2Ready(ctx) {
		c.bump(namespace, func(s *Stats) { s.Misses++ })
		return nil, false
	}
	val, remaining, ok, err := c.l2.Get(ctx, key)
	if err != nil {
		c.markDegraded(err)
		c.bump(namespace, func(s *Stats) { s.Misses++ })
		return nil, false
	}
	if !ok {
		c.bump(namespace, func(s *Stats) { s.Misses++ })
		return nil, false
	}
	c.promote(key, val, remaining)
	c.bump(namespace, func(s *Stats) { s.L2Hits++; s.Promotions++ })
	return val, true
}

// Set writes through both tiers with the namespace TTL.
func (c *MultiLevel) Set(ctx context.Context, namespace, key string, val []byte) {
	c.SetTTL(ctx, namespace, key, val, c.TTLFor(namespace))
}

// SetTTL writes through both tiers with an explicit TTL. The L1 copy is
// capped at the promote window regardless of the requested TTL.
func (c *MultiLevel) SetTTL(ctx context.Context, namespace, key string, val []byte, ttl time.Duration) {
	l1TTL := ttl
	if l1TTL > c.promoteTTL {
		l1TTL = c.promoteTTL
	}
	c.l1.Add(key, l1Entry{val: val, expiresAt: c.now().Add(l1TTL)})
	c.bump(namespace, func(s *Stats) { s.Writes++ })
	if !c.l2Ready(ctx) {
		return
	}
	if err := c.l2.Set(ctx, key, val, ttl); err != nil {
		c.markDegraded(err)
	}
}

func (c *MultiLevel) Delete(ctx context.Context, _, key string) {
	c.l1.Remove(key)
	if !c.l2Ready(ctx) {
		return
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		c.markDegraded(err)
	}
}

// Degraded reports whether the cache is running L1-only.
func (c *MultiLevel) Degraded() bool {
	return c.degraded.Load()
}

func (c *MultiLevel) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Namespaces: make(map[string]Stats),
		L1Entries:  c.l1.Len(),
		Degraded:   c.degraded.Load(),
	}
	c.statsMu.Lock()
	for ns, s := range c.stats {
		snap.Namespaces[ns] = *s
	}
	c.statsMu.Unlock()
	return snap
}

func (c *MultiLevel) Close() error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}

func (c *MultiLevel) promote(key string, val []byte, remaining time.Duration) {
	ttl := c.promoteTTL
	if remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	c.l1.Add(key, l1Entry{val: val, expiresAt: c.now().Add(ttl)})
}

// l2Ready reports whether the remote store should be used for the next
// operation. In degraded mode it probes the store at most once per
// reconnect interval and clears the flag when a ping succeeds.
func (c *MultiLevel) l2Ready(ctx context.Context) bool {
	if c.l2 == nil {
		return false
	}
	if !c.degraded.Load() {
		return true
	}
	last := time.Unix(0, c.lastProbe.Load())
	if c.now().Sub(last) < c.reconnectEvery {
		return false
	}
	c.lastProbe.Store(c.now().UnixNano())
	if err := c.l2.Ping(ctx); err != nil {
		return false
	}
	c.degraded.Store(false)
	slog.Info("Remote cache recovered, resuming write-through")
	if c.health != nil {
		c.health.SetState(health.ServiceCacheL2, health.StateHealthy, "remote store recovered")
	}
	return true
}

func (c *MultiLevel) markDegraded(err error) {
	c.lastProbe.Store(c.now().UnixNano())
	if c.degraded.Swap(true) {
		return
	}
	slog.Warn("Remote cache unreachable, degrading to L1-only", "error", err)
	if c.health != nil {
		c.health.SetState(health.ServiceCacheL2, health.StateDegraded, "remote store unreachable")
	}
}

func (c *MultiLevel) bump(namespace string, fn func(*Stats)) {
	c.statsMu.Lock()
	s, ok := c.stats[namespace]
	if !ok {
		s = &Stats{}
		c.stats[namespace] = s
	}
	fn(s)
	c.statsMu.Unlock()
}

// GetJSON decodes a cached entry into out. Undecodable entries are
// discarded and reported as misses.
func GetJSON[T any](ctx context.Context, c Cacher, namespace, key string, out *T) bool {
	data, ok := c.Get(ctx, namespace, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Debug("Discarding undecodable cache entry", "namespace", namespace, "error", err)
		c.Delete(ctx, namespace, key)
		return false
	}
	return true
}

// SetJSON encodes v and writes it through with the namespace TTL.
func SetJSON[T any](ctx context.Context, c Cacher, namespace, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode cache entry", "namespace", namespace, "error", err)
		return
	}
	c.Set(ctx, namespace, key, data)
}

// SetJSONTTL encodes v and writes it through with an explicit TTL.
func SetJSONTTL[T any](ctx context.Context, c Cacher, namespace, key string, v T, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to encode cache entry", "namespace", namespace, "error", err)
		return
	}
	c.SetTTL(ctx, namespace, key, data, ttl)
}
