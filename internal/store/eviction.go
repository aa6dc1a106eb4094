package store

import "container/heap"

// victimCandidate is one entry considered for eviction: metric is the value
// compared under the active policy (a unix-nano timestamp for LRU/TTL_ONLY,
// an access count for LFU); smaller is evicted first. key is the tie-break
// for determinism: equal metrics fall back to lexicographic key order.
type victimCandidate struct {
	key    string
	metric int64
}

// worstHeap is a bounded max-heap over victimCandidate: its Peek/root holds
// the *largest* metric currently retained, so that when the heap is full a
// newly examined entry with a smaller metric can bump it out. Running a
// single pass with a heap capped at k keeps the whole selection at
// O(n log k).
type worstHeap []victimCandidate

func (h worstHeap) Len() int { return len(h) }
func (h worstHeap) Less(i, j int) bool {
	if h[i].metric != h[j].metric {
		return h[i].metric > h[j].metric // max-heap: biggest metric on top
	}
	return h[i].key > h[j].key // tie-break: lexicographically larger key sorts first (popped first)
}
func (h worstHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstHeap) Push(x any)        { *h = append(*h, x.(victimCandidate)) }
func (h *worstHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// metricFor returns the policy-specific comparison value for e, smaller
// meaning "evict sooner".
func metricFor(policy EvictionPolicy, e *entry) int64 {
	switch policy {
	case LFU:
		return int64(e.accessCount)
	case TTLOnly:
		return e.expiresAt.UnixNano()
	default: // LRU
		return e.lastAccessed.UnixNano()
	}
}

// selectVictims returns up to k keys to evict from entries under policy,
// using a bounded max-heap so the whole call is O(n log k).
func selectVictims(entries map[string]*entry, policy EvictionPolicy, k int) []string {
	if k <= 0 || len(entries) == 0 {
		return nil
	}

	h := make(worstHeap, 0, k+1)
	heap.Init(&h)

	for key, e := range entries {
		cand := victimCandidate{key: key, metric: metricFor(policy, e)}
		if h.Len() < k {
			heap.Push(&h, cand)
			continue
		}
		// h[0] is the current worst (largest) of our k-smallest-so-far; if
		// the new candidate is smaller, it belongs in the kept set instead.
		if cand.Less(h[0]) {
			heap.Pop(&h)
			heap.Push(&h, cand)
		}
	}

	victims := make([]string, len(h))
	for i, c := range h {
		victims[i] = c.key
	}
	return victims
}

// Less reports whether c should be kept over other (i.e. c has the smaller
// metric, tie-broken lexicographically smaller key).
func (c victimCandidate) Less(other victimCandidate) bool {
	if c.metric != other.metric {
		return c.metric < other.metric
	}
	return c.key < other.key
}
