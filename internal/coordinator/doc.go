// Package coordinator links the store to the transport: it translates
// local mutations into peer messages and applies inbound messages locally.
//
// # Overview
//
// Every node runs one Coordinator. There is no distinguished coordinator
// node in the mesh — placement comes from the ring package's
// consistent-hash lookup, liveness from the membership package's
// symmetric heartbeat, and this package is purely local glue between a
// node's own store, membership, and transport client.
//
// # Message Flow
//
//	outbound (local mutation → peers)
//
//	  Put, INVALIDATE mode ──► InvalidationMessage (single key)
//	  Put, REPLICATE mode ───► ReplicationMessage  (key + value + ttl)
//	  Put, NONE mode ────────► nothing
//	  Invalidate ────────────► InvalidationMessage (always, any mode)
//	  InvalidateAll ─────────► InvalidationMessage (invalidateAll=true)
//	  InvalidateByPrefix ────► InvalidationMessage (prefix set)
//
//	inbound (peer message → local state)
//
//	  InvalidationMessage ──► store.Invalidate / InvalidateAll / ByPrefix
//	  ReplicationMessage ───► store.Put (with the carried ttl)
//	  HeartbeatMessage ─────► membership.RecordHeartbeatSuccess
//
// Inbound handlers never re-emit outbound traffic, so a message can never
// loop between nodes. Messages for the same key are not ordered across
// peers: invalidation is idempotent, and replication applies
// last-writer-wins by local arrival time. The origin node ID carried on
// each message is informational only.
//
// # Dispatch Modes
//
// Async (the default) hands the fan-out to a background goroutine and
// returns immediately; send failures are logged and swallowed, because
// the local mutation that triggered dispatch has already completed and
// must not be undone. Sync awaits every send and returns the first
// failure wrapped in ErrClusterCommunicationFailed. Outstanding async
// work is tracked on a WaitGroup so Wait can drain it during shutdown.
//
// # Concurrency and Thread Safety
//
// All methods are safe for concurrent use. The Coordinator holds no
// mutable state of its own beyond the WaitGroup; per-key consistency is
// the store's concern and per-peer send ordering is the transport's.
//
// # Usage Example
//
//	c := coordinator.New(coordinator.Config{NodeID: "node-a"}, st, mem, client, logger)
//
//	// after a local put on a REPLICATE-mode cache:
//	c.DispatchPut(ctx, "users", "u:1", payload, ttl, store.ReplicationReplicate)
//
//	// wired as the transport server's Handler for the inbound side:
//	srv := transport.NewServer(transport.DefaultServerConfig(), c, logger)
//
// # See Also
//
// Related packages:
//   - internal/store: the state inbound messages mutate
//   - internal/membership: the active-peer set outbound sends fan to
//   - internal/transport: carries the three message records
package coordinator
