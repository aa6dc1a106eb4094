package ring

import (
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// VirtualNodes is the number of virtual-node hashes inserted per physical
// node.
const VirtualNodes = 150

// hashKey reduces an arbitrary string to a point on the 64-bit ring: the
// first 8 bytes of the MD5 digest, interpreted big-endian. MD5 is used as
// a stable, well-distributed hash, not for security.
func hashKey(s string) uint64 {
	sum := md5.Sum([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}

// vnode is one virtual node's position on the ring.
type vnode struct {
	nodeID string
	hash   uint64
}

// Ring maps arbitrary string keys onto a set of physical node IDs using
// consistent hashing with virtual nodes. Readers never block each other;
// writers (AddNode/RemoveNode) are serialized and always install a brand
// new sorted slice, so a concurrent reader observes either the pre- or
// post-change ring, never a torn view.
type Ring struct {
	mu     sync.RWMutex
	vnodes []vnode // sorted by hash
	nodes  map[string]int // nodeID -> vnode count present, for O(1) membership checks
}

// New returns an empty ring.
func New() *Ring {
	return &Ring{nodes: make(map[string]int)}
}

// AddNode inserts VirtualNodes hashed positions for nodeID. It is a no-op if
// the node is already present.
func (r *Ring) AddNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[nodeID]; exists {
		return
	}

	next := make([]vnode, len(r.vnodes), len(r.vnodes)+VirtualNodes)
	copy(next, r.vnodes)
	for i := 0; i < VirtualNodes; i++ {
		next = append(next, vnode{
			nodeID: nodeID,
			hash:   hashKey(fmt.Sprintf("%s#%d", nodeID, i)),
		})
	}
	sort.Slice(next, func(i, j int) bool { return next[i].hash < next[j].hash })

	r.vnodes = next
	r.nodes[nodeID] = VirtualNodes
}

// RemoveNode deletes all virtual nodes belonging to nodeID. It is a no-op if
// the node is not present.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[nodeID]; !exists {
		return
	}

	next := make([]vnode, 0, len(r.vnodes))
	for _, v := range r.vnodes {
		if v.nodeID != nodeID {
			next = append(next, v)
		}
	}
	r.vnodes = next
	delete(r.nodes, nodeID)
}

// GetNode returns the node owning key: the virtual node whose hash is the
// next value >= hash(key), wrapping to the first entry if none is greater.
// It returns "", false iff the ring is empty.
func (r *Ring) GetNode(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.vnodes) == 0 {
		return "", false
	}

	h := hashKey(key)
	idx := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })
	if idx == len(r.vnodes) {
		idx = 0
	}
	return r.vnodes[idx].nodeID, true
}

// GetNodes walks the ring clockwise from hash(key), collecting up to n
// distinct node IDs for replica placement. Order reflects ring-walk order
// (the insertion-relative order of the underlying vnode positions), and the
// result may contain fewer than n entries if the ring has fewer than n
// distinct nodes.
func (r *Ring) GetNodes(key string, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.vnodes) == 0 {
		return nil
	}

	h := hashKey(key)
	start := sort.Search(len(r.vnodes), func(i int) bool { return r.vnodes[i].hash >= h })

	seen := make(map[string]struct{}, n)
	result := make([]string, 0, n)
	for i := 0; i < len(r.vnodes) && len(result) < n; i++ {
		v := r.vnodes[(start+i)%len(r.vnodes)]
		if _, ok := seen[v.nodeID]; ok {
			continue
		}
		seen[v.nodeID] = struct{}{}
		result = append(result, v.nodeID)
	}
	return result
}

// AllNodes returns the set of distinct physical node IDs currently on the
// ring, in no particular order.
func (r *Ring) AllNodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		out = append(out, id)
	}
	return out
}
