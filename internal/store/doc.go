// Package store implements the per-named-cache in-memory engine: concurrent
// entry maps with TTL, bounded size, and eviction under three policies.
//
// # Overview
//
// A Store is a map of named caches, each an independent region with its
// own configuration, entry map, and statistics. Caches are created lazily
// on first Configure or Put using DefaultConfig — an unknown cache name is
// never an error, a Get against one is simply a miss.
//
// Values are held as opaque, already-serialized byte payloads. The store
// never inspects or type-checks what it stores, which is what lets memory
// accounting stay an exact byte count instead of an object-graph walk.
//
// # Architecture
//
// Two locking levels keep unrelated caches fully independent:
//
//	┌─────────────────────────────────────┐
//	│               Store                 │
//	│     (RWMutex over name → cache)     │
//	└─────────────────────────────────────┘
//	          │            │
//	          ▼            ▼
//	┌──────────────┐ ┌──────────────┐
//	│  namedCache  │ │  namedCache  │
//	│  "users"     │ │  "sessions"  │
//	│  mu, config, │ │  mu, config, │
//	│  entries,    │ │  entries,    │
//	│  counters    │ │  counters    │
//	└──────────────┘ └──────────────┘
//
// The top-level lock guards only cache lookup/creation; each named cache
// then serializes its own mutations, so operations against different
// names proceed in parallel.
//
// # Core Operations
//
// Store: lifecycle and data operations
//   - Configure(name, cfg) - Install or replace a cache's configuration
//   - Put(name, key, value, ttl, origin) - Install an entry
//   - PutAll(name, entries, ttl, origin) - Bulk install, one lock hold
//   - Get(name, key) - Look up; touches access metadata on hit
//   - Invalidate(name, key) - Remove one entry
//   - InvalidateAll(name) - Clear a cache
//   - InvalidateByPrefix(name, prefix) - Remove matching entries
//   - Keys(name, prefix) - Snapshot of matching keys
//   - Stats(name) - Counters and gauges
//   - CacheNames() - Names of every cache created so far
//
// # TTL and Expiry
//
// Every entry carries an expiration instant computed at put time from the
// per-put override or the cache's configured TTL. Expiry is enforced on
// access: a Get that finds an expired entry records a miss and removes the
// entry best-effort, and every put opportunistically sweeps expired
// entries it shares a lock hold with. There is no background sweeper.
//
// # Eviction
//
// Before a put installs a brand-new key, the eviction precondition runs:
//
//  1. At max-entries: evict 1 entry by policy
//  2. At or over the memory cap: evict ceil(0.1 × size) entries by policy
//
// Policies pick the victim by a single comparison metric:
//   - LRU: smallest last-accessed timestamp
//   - LFU: smallest access count
//   - TTL_ONLY: nearest expiration
//
// Ties break deterministically on lexicographic key order. Victim
// selection runs one pass over the entries with a bounded max-heap of
// size k, keeping eviction of k from n entries at O(n log k).
//
// # Memory Accounting
//
// The memory gauge is an exact count: 64 bytes of fixed per-entry
// overhead plus the key and value byte lengths. It is monotone in the
// true memory use and never negative. The cap is best-effort — a put that
// crosses it still succeeds, and the next put of a new key finds the cache
// at or over the cap and runs the batch eviction above.
//
// # Concurrency and Thread Safety
//
// All operations are safe for concurrent use:
//   - Mutations (including Get, which touches access metadata) serialize
//     on the per-cache mutex
//   - Keys and Stats take only the read side
//   - Counters are atomics so Stats never blocks a writer
//   - Get returns defensive copies; callers may mutate the result freely
//
// # Usage Example
//
//	s := store.New()
//	s.Configure("users", store.CacheConfig{
//	    TTL:             5 * time.Minute,
//	    Eviction:        store.LRU,
//	    MaxEntries:      10_000,
//	    MemoryCapBytes:  64 << 20,
//	    ReplicationMode: store.ReplicationInvalidate,
//	})
//
//	s.Put("users", "u:1", payload, 0, "node-a")
//	if value, hit := s.Get("users", "u:1"); hit {
//	    // value is a private copy of the stored bytes
//	}
//
// # See Also
//
// Related packages:
//   - internal/coordinator: propagates store mutations to peers
//   - internal/codec: produces the byte payloads the store holds
package store
