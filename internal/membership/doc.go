// Package membership tracks known and active peers via active heartbeat
// probing and failure detection.
//
// # Overview
//
// Membership is symmetric: every node runs its own instance and pings
// every peer it knows about, so there is no distinguished monitor and a
// cluster-wide view emerges from each node's local observations. The
// known set is the peers this node has been told about (static
// configuration, operator action, or an unsolicited heartbeat); the
// active set is the subset currently believed reachable.
//
// # Peer State Machine
//
// Each peer moves between two states:
//
//	             success (reset failures)
//	        ┌───────────────────────────────┐
//	        ▼                               │
//	    ┌────────┐  N consecutive failures ┌────────┐
//	    │ Active │ ───────────────────────►│Inactive│
//	    │        │  or stale lastHeartbeat │        │
//	    └────────┘                         └────────┘
//	        ▲                               │
//	        └───────────────────────────────┘
//	             any successful heartbeat
//
// Newly added peers start Active so a freshly configured cluster is
// usable before the first heartbeat round completes.
//
// # Scheduling
//
// Start launches two independent tickers:
//   - Heartbeat dispatch, every HeartbeatInterval (default 5s): pings
//     every known peer — not only active ones, so a recovered peer is
//     rediscovered — and records the outcome per peer
//   - Staleness re-evaluation, every HeartbeatTimeout/2: demotes any
//     active peer whose last heartbeat is older than HeartbeatTimeout
//     (default 15s), catching peers that went quiet without a send ever
//     failing
//
// Individual send failures never cancel a peer's future pings; they only
// increment that peer's consecutive-failure count, which demotes the peer
// at FailureThreshold (default 3).
//
// # Concurrency and Thread Safety
//
// All exported methods are safe for concurrent use. The known and active
// sets are mutated together under one mutex, so a peer is never
// observable as active yet absent from the known set. View returns a
// fully detached snapshot that callers may retain.
//
// # Usage Example
//
//	m := membership.New("node-a", membership.DefaultParams(), logger)
//	m.AddPeer("10.0.0.2:7050")
//	m.Start(ctx, func(ctx context.Context, addr string) error {
//	    return client.SendHeartbeat(ctx, addr, msg)
//	})
//	defer m.Stop()
//
//	for _, peer := range m.ActivePeers() {
//	    // fan a message out to reachable peers
//	}
//
// # See Also
//
// Related packages:
//   - internal/transport: carries the heartbeat messages
//   - internal/coordinator: reads ActivePeers for mutation fan-out
package membership
