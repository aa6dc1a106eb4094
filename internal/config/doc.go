// Package config loads and validates the node's startup configuration:
// node identity, communication port, heartbeat timing, static peer
// discovery, and per-named-cache settings.
//
// # Overview
//
// Configuration is read once at startup from a YAML file via
// gopkg.in/yaml.v3 and validated fail-fast: a malformed or out-of-range
// value produces an ErrConfigurationInvalid-wrapping error and the node
// must not begin serving. Load never returns a partially valid Config.
//
// # File Format
//
//	node-id: node-a
//	advertise-addr: 10.0.0.1:7050
//	communication-port: 7050
//	heartbeat-interval-ms: 5000
//	heartbeat-timeout-ms: 15000
//	failure-threshold: 3
//	dispatch-mode: async
//	discovery:
//	  type: static
//	  peers:
//	    - 10.0.0.2:7050
//	    - 10.0.0.3:7050
//	caches:
//	  users:
//	    ttl: PT5M
//	    eviction-policy: LRU
//	    max-entries: 10000
//	    memory-cap-mb: 64
//	    replication-mode: INVALIDATE
//
// Only static discovery is supported: the listed peers seed membership
// and all begin in the active set.
//
// # Durations
//
// Per-cache TTLs are ISO-8601 duration strings. ParseISO8601Duration
// handles the subset needed here — a leading "P", an optional date part
// (years/months/weeks/days, converted to fixed 24h days since the cache
// layer has no calendar semantics), and a "T" time part with
// hours/minutes/seconds — e.g. "PT5M", "PT1H30M", "P1DT12H", "PT0.5S".
// Top-level heartbeat timings use plain millisecond integers instead,
// matching how operators reason about them.
//
// # Validation Rules
//
//   - node-id must be non-empty (the binary may inject one from the
//     environment or generate a UUID before validating)
//   - communication-port must be a valid TCP port
//   - heartbeat-timeout-ms must exceed heartbeat-interval-ms, or a
//     healthy peer could be declared stale between two scheduled pings
//   - failure-threshold must be positive
//   - dispatch-mode must be "async", "sync", or empty (async)
//   - discovery.type must be "static" (with at least one peer) or absent
//   - every cache block must convert to a valid store.CacheConfig
//
// # Usage Example
//
//	cfg, err := config.Load("cachenode.yaml")
//	if errors.Is(err, config.ErrConfigurationInvalid) {
//	    log.Fatalf("bad configuration: %v", err)
//	}
//
// # See Also
//
// Related packages:
//   - internal/store: the target type of each cache block
//   - cmd/cachenode: applies environment overrides before validation
package config
