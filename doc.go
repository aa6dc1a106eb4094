// Package meshcache is an in-process, peer-to-peer distributed cache that
// application instances embed to memoize expensive derived data, with a
// TCP mesh keeping replicas coherent across nodes.
//
// # Overview
//
// Each node embeds one Engine: a local store of named caches with TTL and
// eviction, a consistent-hash ring describing cluster placement, active
// heartbeat membership, and a framed-TCP transport for invalidation,
// replication, and heartbeat traffic. There is no central coordinator
// process — every node runs the same stack and peers with every other node
// symmetrically.
//
// # Architecture
//
// The Engine wires six collaborators:
//
//	┌─────────────────────────────────────────────┐
//	│                   Engine                    │
//	│  Get / GetOrLoad / Put / PutAll /           │
//	│  Invalidate* / Stats / Configure /          │
//	│  ListCaches / ListKeys / ClusterView        │
//	├──────────┬──────────┬──────────┬────────────┤
//	│  Store   │   Ring   │ Members. │ Coordinator│
//	│  (TTL,   │ (vnode   │ (heart-  │ (mutation→ │
//	│ eviction)│  hash)   │  beats)  │  messages) │
//	├──────────┴──────────┴──────────┴────────────┤
//	│          Transport (framed TCP)             │
//	│   Client: pool + retry + breaker per peer   │
//	│   Server: one message per connection        │
//	└─────────────────────────────────────────────┘
//	                     │
//	                     ▼
//	              peer nodes (mesh)
//
// A read flows Engine → Store on hit; on a miss GetOrLoad collapses
// concurrent callers into one loader invocation, installs the result, and
// the Coordinator fans the mutation out to peers. Inbound messages arrive
// at the Server, are dispatched by the Coordinator, and mutate the Store
// or Membership without re-emitting traffic.
//
// # Named Caches
//
// Caches are addressed by string name and created lazily on first use.
// Each carries its own configuration:
//   - TTL: entry lifetime (a put may override per entry)
//   - Eviction policy: LRU, LFU, or TTL_ONLY
//   - Max entries and memory cap in bytes
//   - Replication mode: NONE, INVALIDATE, or REPLICATE
//
// # Coherence Modes
//
// INVALIDATE treats the local value as canonical: a put tells peers to
// drop their copy and re-load on their own next miss. REPLICATE hands
// peers the new value directly; concurrent writers resolve
// last-writer-wins by local arrival order. NONE keeps mutations local.
// Explicit invalidations always propagate, regardless of mode.
//
// # Concurrency
//
// Every Engine method is safe for concurrent use from any number of
// goroutines. Store operations on the same key serialize on the per-cache
// lock; GetOrLoad callers racing the same (cache, key) park on a single
// in-flight load via golang.org/x/sync/singleflight; outbound dispatch in
// async mode (the default) never blocks the caller.
//
// # Error Handling
//
// Errors surface as typed values the caller can match with errors.Is/As:
//   - ErrShutdown: the operation began after Shutdown
//   - CacheLoadFailed: the GetOrLoad loader returned an error (never cached)
//   - codec.ErrSerializationFailed: a payload could not be encoded/decoded
//   - coordinator.ErrClusterCommunicationFailed: a sync-mode peer send
//     failed after retries or was short-circuited by the breaker
//   - config.ErrConfigurationInvalid: startup configuration rejected
//
// Local mutations always complete before peer communication is attempted;
// a peer failure never undoes a local effect.
//
// # Usage Example
//
//	cfg, err := config.Load("cachenode.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine, err := meshcache.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Shutdown(context.Background())
//
//	value, err := engine.GetOrLoad(ctx, "users", "u:42", 30*time.Second,
//	    func(ctx context.Context) ([]byte, error) {
//	        return loadUserFromDatabase(ctx, 42)
//	    })
//
// # See Also
//
// Related packages:
//   - internal/store: per-named-cache entry maps, TTL, eviction
//   - internal/ring: consistent-hash key placement
//   - internal/membership: heartbeat scheduling and failure detection
//   - internal/transport: framed TCP client and server
//   - internal/coordinator: mutation fan-out and inbound dispatch
//   - internal/config: YAML startup configuration
//   - cmd/cachenode: the runnable node binary
package meshcache
