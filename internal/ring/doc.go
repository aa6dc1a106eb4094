// Package ring implements the consistent-hash ring used to place cache
// keys on cluster nodes.
//
// # Overview
//
// The ring maps arbitrary string keys onto physical node IDs. Each
// physical node contributes 150 virtual nodes, keyed "nodeId#i" and
// hashed onto a 64-bit ring; a key belongs to the virtual node whose hash
// is the next value at or above the key's own hash, wrapping to the first
// entry past the top.
//
//	          0 ──────────────┐
//	      ▲                   │
//	      │   vnode n2#17     ▼
//	  vnode n1#3         vnode n3#41
//	      ▲                   │
//	      │                   ▼
//	      └──── hash(key) ────┘
//	        key → next vnode clockwise
//
// Virtual nodes smooth the key distribution so adding or removing one
// physical node remaps only roughly its own share of keys (≈1/(N+1) of
// them for a ring growing from N to N+1 nodes), rather than reshuffling
// everything.
//
// # Core Operations
//
//   - AddNode(nodeID) - Insert 150 virtual positions; no-op if present
//   - RemoveNode(nodeID) - Remove all of a node's positions
//   - GetNode(key) - The node owning key; ok=false only on an empty ring
//   - GetNodes(key, n) - Up to n distinct nodes walking clockwise
//   - AllNodes() - The distinct physical node IDs on the ring
//
// # Hashing
//
// Positions come from the first 8 bytes of the MD5 digest of the vnode
// (or key) string, interpreted big-endian. MD5 is used as a stable,
// well-distributed hash, not for security.
//
// # Concurrency and Thread Safety
//
// Readers never block each other: lookups bisect an immutable sorted
// slice under a read lock. Writers are serialized and always install a
// freshly built slice, so a reader concurrent with AddNode/RemoveNode
// observes either the old or the new ring, never a torn view.
//
// # Usage Example
//
//	r := ring.New()
//	r.AddNode("node-a")
//	r.AddNode("node-b")
//
//	owner, ok := r.GetNode("user:123")   // deterministic for a given ring
//	replicas := r.GetNodes("user:123", 2) // owner plus next distinct node
//
// # See Also
//
// Related packages:
//   - internal/membership: supplies the live node set the ring tracks
package ring
