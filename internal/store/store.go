package store

import (
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// namedCache holds one logical cache region: its configuration, its entry
// map, and its statistics. All mutation is serialized through mu; counters
// use atomics so Stats can read them without taking the write lock.
type namedCache struct {
	mu              sync.RWMutex
	config          CacheConfig
	entries         map[string]*entry
	estimatedMemory int64

	hits         uint64
	misses       uint64
	evictions    uint64
	evictionsLRU uint64
	evictionsLFU uint64
	evictionsTTL uint64
}

func newNamedCache(cfg CacheConfig) *namedCache {
	return &namedCache{
		config:  cfg,
		entries: make(map[string]*entry),
	}
}

// Store is the concurrent map-of-named-caches engine: every named cache
// (e.g. "issue", "user-profile") gets its own
// entry map, its own configuration, and its own hit/miss/eviction counters,
// all reachable by name through one Store.
//
// Thread-safety:
//   - Safe for concurrent use from any number of goroutines.
//   - A top-level RWMutex guards only the name->cache map, so looking up
//     or creating a named cache never blocks operations already in
//     progress against a different named cache.
//   - Each named cache then has its own mutex, so Put/Get/Invalidate calls
//     against different names proceed fully in parallel; calls against the
//     same name are serialized.
//
// Values returned by Get are always defensive copies; callers may mutate
// the returned slice without corrupting the stored entry.
//
// The zero value is not usable; construct with New.
type Store struct {
	mu     sync.RWMutex
	caches map[string]*namedCache
}

// New returns an empty Store ready for use.
func New() *Store {
	return &Store{caches: make(map[string]*namedCache)}
}

// getOrCreate returns the named cache, creating it with DefaultConfig on
// first use — an unknown cache name is never an error.
func (s *Store) getOrCreate(name string) *namedCache {
	s.mu.RLock()
	nc, ok := s.caches[name]
	s.mu.RUnlock()
	if ok {
		return nc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if nc, ok = s.caches[name]; ok {
		return nc
	}
	nc = newNamedCache(DefaultConfig())
	s.caches[name] = nc
	return nc
}

// Configure installs cfg for name, creating the cache if it doesn't exist
// and preserving any existing entries otherwise. It is idempotent and
// rejects invalid configurations.
func (s *Store) Configure(name string, cfg CacheConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	nc, ok := s.caches[name]
	if !ok {
		nc = newNamedCache(cfg)
		s.caches[name] = nc
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	nc.mu.Lock()
	nc.config = cfg
	nc.mu.Unlock()
	return nil
}

// Config returns the current configuration for name, or DefaultConfig if
// the cache doesn't exist yet (it has not been created by a Put/Configure
// call).
func (s *Store) Config(name string) CacheConfig {
	s.mu.RLock()
	nc, ok := s.caches[name]
	s.mu.RUnlock()
	if !ok {
		return DefaultConfig()
	}
	nc.mu.RLock()
	defer nc.mu.RUnlock()
	return nc.config
}

// Put installs value under (name, key), replacing any existing entry.
//
// Behavior:
//   - Creates the named cache with DefaultConfig on first use; never
//     returns UnknownCache.
//   - ttlOverride, if positive, takes precedence over the cache's
//     configured TTL; otherwise the configured TTL applies.
//   - origin identifies the node that produced the value. It is
//     informational only — last-write-wins by arrival order, not by
//     origin.
//   - Runs the eviction precondition before installing a key that does not
//     already exist, never after overwriting one that does.
//   - Stores a defensive copy of value; the caller's slice may be reused
//     or mutated afterward.
//
// Thread-safety: serialized per named cache; calls against different
// names proceed in parallel.
func (s *Store) Put(name, key string, value []byte, ttlOverride time.Duration, origin string) error {
	nc := s.getOrCreate(name)
	now := time.Now()

	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.putLocked(key, value, ttlOverride, origin, now)
	return nil
}

// PutAll applies entries in a single lock acquisition, each individually
// subject to the eviction precondition.
func (s *Store) PutAll(name string, entries map[string][]byte, ttlOverride time.Duration, origin string) error {
	nc := s.getOrCreate(name)
	now := time.Now()

	nc.mu.Lock()
	defer nc.mu.Unlock()
	for key, value := range entries {
		nc.putLocked(key, value, ttlOverride, origin, now)
	}
	return nil
}

// putLocked installs key/value, running the eviction precondition first.
// Caller must hold nc.mu.
func (nc *namedCache) putLocked(key string, value []byte, ttlOverride time.Duration, origin string, now time.Time) {
	nc.evictExpiredLocked(now)

	ttl := ttlOverride
	if ttl <= 0 {
		ttl = nc.config.TTL
	}

	if old, exists := nc.entries[key]; exists {
		nc.estimatedMemory -= estimatedSize(key, old)
	} else {
		nc.runEvictionPreconditionLocked(now)
	}

	e := &entry{
		value:        append([]byte(nil), value...),
		expiresAt:    now.Add(ttl),
		originNodeID: origin,
		createdAt:    now,
		lastAccessed: now,
		accessCount:  0,
	}
	nc.entries[key] = e
	nc.estimatedMemory += estimatedSize(key, e)
}

// runEvictionPreconditionLocked runs before a *new* key is installed:
// evict one entry if at max-entries, then evict ceil(0.1*size) more if
// at or over the memory cap. Caller must hold nc.mu.
func (nc *namedCache) runEvictionPreconditionLocked(now time.Time) {
	if len(nc.entries) >= nc.config.MaxEntries {
		nc.evictLocked(1)
	}
	if nc.estimatedMemory >= nc.config.MemoryCapBytes {
		batch := int(math.Ceil(0.1 * float64(len(nc.entries))))
		if batch < 1 {
			batch = 1
		}
		nc.evictLocked(batch)
	}
}

// evictExpiredLocked removes any entries already past expiration. Caller
// must hold nc.mu.
func (nc *namedCache) evictExpiredLocked(now time.Time) {
	for key, e := range nc.entries {
		if e.isExpired(now) {
			nc.estimatedMemory -= estimatedSize(key, e)
			delete(nc.entries, key)
		}
	}
	if nc.estimatedMemory < 0 {
		nc.estimatedMemory = 0
	}
}

// evictLocked removes up to k entries chosen by the configured policy,
// incrementing the eviction counters. Caller must hold nc.mu.
func (nc *namedCache) evictLocked(k int) {
	victims := selectVictims(nc.entries, nc.config.Eviction, k)
	for _, key := range victims {
		e := nc.entries[key]
		nc.estimatedMemory -= estimatedSize(key, e)
		delete(nc.entries, key)
		atomic.AddUint64(&nc.evictions, 1)
		switch nc.config.Eviction {
		case LFU:
			atomic.AddUint64(&nc.evictionsLFU, 1)
		case TTLOnly:
			atomic.AddUint64(&nc.evictionsTTL, 1)
		default:
			atomic.AddUint64(&nc.evictionsLRU, 1)
		}
	}
	if nc.estimatedMemory < 0 {
		nc.estimatedMemory = 0
	}
}

// Get looks up (name, key).
//
// Behavior:
//   - A present, unexpired entry is touched (last-accessed and
//     access-count updated, the latter feeding LFU eviction) and recorded
//     as a hit; its value is returned as a defensive copy.
//   - A missing or already-expired entry records a miss and returns
//     (nil, false). An expired entry found this way is also removed
//     best-effort, so expiry does not wait for a background sweep.
//   - Never returns an error: an unknown cache name behaves as an empty
//     one.
//
// Thread-safety: safe for concurrent calls; serialized per named cache
// because touching an entry is itself a write (last-accessed/access-count).
func (s *Store) Get(name, key string) ([]byte, bool) {
	nc := s.getOrCreate(name)
	now := time.Now()

	nc.mu.Lock()
	defer nc.mu.Unlock()

	e, ok := nc.entries[key]
	if !ok || e.isExpired(now) {
		if ok {
			nc.estimatedMemory -= estimatedSize(key, e)
			if nc.estimatedMemory < 0 {
				nc.estimatedMemory = 0
			}
			delete(nc.entries, key)
		}
		atomic.AddUint64(&nc.misses, 1)
		return nil, false
	}

	e.touch(now)
	atomic.AddUint64(&nc.hits, 1)
	return append([]byte(nil), e.value...), true
}

// Invalidate removes (name, key) if present; no effect if absent.
func (s *Store) Invalidate(name, key string) {
	nc := s.getOrCreate(name)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if e, ok := nc.entries[key]; ok {
		nc.estimatedMemory -= estimatedSize(key, e)
		if nc.estimatedMemory < 0 {
			nc.estimatedMemory = 0
		}
		delete(nc.entries, key)
	}
}

// InvalidateAll clears every entry in name.
func (s *Store) InvalidateAll(name string) {
	nc := s.getOrCreate(name)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	nc.entries = make(map[string]*entry)
	nc.estimatedMemory = 0
}

// InvalidateByPrefix removes every key in name starting with prefix.
func (s *Store) InvalidateByPrefix(name, prefix string) {
	nc := s.getOrCreate(name)
	nc.mu.Lock()
	defer nc.mu.Unlock()
	for key, e := range nc.entries {
		if strings.HasPrefix(key, prefix) {
			nc.estimatedMemory -= estimatedSize(key, e)
			delete(nc.entries, key)
		}
	}
	if nc.estimatedMemory < 0 {
		nc.estimatedMemory = 0
	}
}

// Keys returns a snapshot of the keys in name matching prefix (empty prefix
// matches all keys).
func (s *Store) Keys(name, prefix string) []string {
	nc := s.getOrCreate(name)
	nc.mu.RLock()
	defer nc.mu.RUnlock()

	out := make([]string, 0, len(nc.entries))
	for key := range nc.entries {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out
}

// Stats returns a point-in-time snapshot of name's counters and gauges.
func (s *Store) Stats(name string) CacheStats {
	nc := s.getOrCreate(name)
	nc.mu.RLock()
	size := len(nc.entries)
	mem := nc.estimatedMemory
	nc.mu.RUnlock()

	return CacheStats{
		Hits:            atomic.LoadUint64(&nc.hits),
		Misses:          atomic.LoadUint64(&nc.misses),
		Evictions:       atomic.LoadUint64(&nc.evictions),
		EvictionsLRU:    atomic.LoadUint64(&nc.evictionsLRU),
		EvictionsLFU:    atomic.LoadUint64(&nc.evictionsLFU),
		EvictionsTTL:    atomic.LoadUint64(&nc.evictionsTTL),
		Size:            size,
		EstimatedMemory: mem,
		LastObserved:    time.Now(),
	}
}

// CacheNames returns the names of every cache created so far.
func (s *Store) CacheNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.caches))
	for name := range s.caches {
		out = append(out, name)
	}
	return out
}
