package store

import "time"

// EvictionPolicy selects which entry a named cache discards when it must
// free room for a new one.
type EvictionPolicy string

const (
	// LRU evicts the entry with the smallest last-accessed timestamp.
	LRU EvictionPolicy = "LRU"
	// LFU evicts the entry with the smallest access count.
	LFU EvictionPolicy = "LFU"
	// TTLOnly evicts the entry with the nearest expiration, regardless of
	// access recency or frequency.
	TTLOnly EvictionPolicy = "TTL_ONLY"
)

// ReplicationMode selects how a named cache's mutations are propagated to
// peers by the coordinator. The store itself does not act on this value;
// it is carried on CacheConfig purely so the coordinator can read it back
// via Store.Config.
type ReplicationMode string

const (
	// ReplicationNone means mutations are never sent to peers.
	ReplicationNone ReplicationMode = "NONE"
	// ReplicationInvalidate means peers are told to drop the key and
	// re-load on their own next miss.
	ReplicationInvalidate ReplicationMode = "INVALIDATE"
	// ReplicationReplicate means peers receive the new value directly.
	ReplicationReplicate ReplicationMode = "REPLICATE"
)

// CacheConfig is the per-named-cache configuration. Caches are created
// lazily on first Configure or Put call using DefaultConfig; configuration
// may later be replaced wholesale but never reduced to invalid values (see
// Store.Configure).
type CacheConfig struct {
	TTL             time.Duration
	Eviction        EvictionPolicy
	MaxEntries      int
	MemoryCapBytes  int64
	ReplicationMode ReplicationMode
}

// DefaultConfig is installed for a cache created implicitly by Put or Get
// rather than by an explicit Configure call.
func DefaultConfig() CacheConfig {
	return CacheConfig{
		TTL:             5 * time.Minute,
		Eviction:        LRU,
		MaxEntries:      10_000,
		MemoryCapBytes:  64 << 20, // 64MiB
		ReplicationMode: ReplicationNone,
	}
}

// Validate reports whether c is a usable configuration; a replacement
// configuration may never be reduced to invalid values.
func (c CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return errInvalidConfig("ttl must be positive")
	}
	if c.MaxEntries <= 0 {
		return errInvalidConfig("max-entries must be positive")
	}
	if c.MemoryCapBytes <= 0 {
		return errInvalidConfig("memory-cap-bytes must be positive")
	}
	switch c.Eviction {
	case LRU, LFU, TTLOnly:
	default:
		return errInvalidConfig("unknown eviction policy: " + string(c.Eviction))
	}
	switch c.ReplicationMode {
	case ReplicationNone, ReplicationInvalidate, ReplicationReplicate:
	default:
		return errInvalidConfig("unknown replication mode: " + string(c.ReplicationMode))
	}
	return nil
}

// CacheStats is one named cache's observable counters and gauges. Counters
// are monotonically increasing for the lifetime of the process; gauges
// reflect the state at the moment Store.Stats was called.
type CacheStats struct {
	Hits            uint64
	Misses          uint64
	Evictions       uint64
	EvictionsLRU    uint64
	EvictionsLFU    uint64
	EvictionsTTL    uint64
	Size            int
	EstimatedMemory int64
	LastObserved    time.Time
}

// entry is the internal per-key record. It is never exposed outside the
// package; callers only ever see the raw value bytes.
type entry struct {
	value        []byte
	expiresAt    time.Time
	originNodeID string
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  uint64
}

func (e *entry) isExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

func (e *entry) touch(now time.Time) {
	e.lastAccessed = now
	e.accessCount++
}

// estimatedSize is the byte accounting used for the named cache's memory
// gauge: a fixed per-entry overhead plus the key and value lengths.
// Because the store only ever holds pre-serialized payloads (see package
// doc), this is an exact count, not an approximation — it is monotone in
// the true memory use and never negative.
const entryOverheadBytes = 64

func estimatedSize(key string, e *entry) int64 {
	return entryOverheadBytes + int64(len(key)) + int64(len(e.value))
}
