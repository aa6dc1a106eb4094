package meshcache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/meshcache/internal/config"
	"github.com/dreamware/meshcache/internal/store"
)

// freePort asks the OS for an unused TCP port by binding to :0 and
// immediately releasing it, the common idiom for handing a concrete,
// collision-free port to a component that wants to own its own listener
// (meshcache.New takes a port number, not a pre-bound listener).
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, nodeID string) config.Config {
	return config.Config{
		NodeID:              nodeID,
		CommunicationPort:   freePort(t),
		HeartbeatIntervalMS: 200,
		HeartbeatTimeoutMS:  600,
		FailureThreshold:    3,
		Caches: map[string]config.Cache{
			"issue": {TTL: "PT30S", EvictionPolicy: "LRU", MaxEntries: 1000, MemoryCapMB: 8, ReplicationMode: "NONE"},
		},
	}
}

func newTestEngine(t *testing.T, nodeID string) *Engine {
	t.Helper()
	e, err := New(testConfig(t, nodeID), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return e
}

func TestPutThenGetWithinTTL(t *testing.T) {
	e := newTestEngine(t, "node-a")

	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte(`{"id":1}`), 30*time.Second))

	value, hit, err := e.Get("issue", "i:1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, `{"id":1}`, string(value))
}

func TestGetMissReportsStats(t *testing.T) {
	e := newTestEngine(t, "node-a")

	_, hit, err := e.Get("issue", "missing")
	require.NoError(t, err)
	require.False(t, hit)

	stats, err := e.Stats("issue")
	require.NoError(t, err)
	require.Equal(t, uint64(1), stats.Misses)
}

// TestGetOrLoadSingleFlight: 200 concurrent callers racing a 200ms loader
// must collapse into exactly one loader execution, and every caller must
// observe the loaded value.
func TestGetOrLoadSingleFlight(t *testing.T) {
	e := newTestEngine(t, "node-a")

	var invocations int32
	loader := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&invocations, 1)
		time.Sleep(200 * time.Millisecond)
		return []byte(`{"id":42}`), nil
	}

	const callers = 200
	var wg sync.WaitGroup
	results := make([][]byte, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := e.GetOrLoad(context.Background(), "issue", "i:42", 30*time.Second, loader)
			results[i] = v
			errs[i] = err
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&invocations), "loader must run exactly once")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, `{"id":42}`, string(results[i]))
	}

	stats, err := e.Stats("issue")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Misses, "a coalesced herd of misses must record exactly one miss")
}

// TestGetOrLoadAfterPopulationSkipsLoader: a call issued after the entry
// is already valid must not invoke loader.
func TestGetOrLoadAfterPopulationSkipsLoader(t *testing.T) {
	e := newTestEngine(t, "node-a")
	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte("v1"), 30*time.Second))

	called := false
	v, err := e.GetOrLoad(context.Background(), "issue", "i:1", 30*time.Second, func(ctx context.Context) ([]byte, error) {
		called = true
		return []byte("v2"), nil
	})
	require.NoError(t, err)
	require.False(t, called)
	require.Equal(t, "v1", string(v))
}

// TestGetOrLoadErrorNotCached: a failing loader surfaces CacheLoadFailed
// and leaves nothing behind for the next caller to observe.
func TestGetOrLoadErrorNotCached(t *testing.T) {
	e := newTestEngine(t, "node-a")
	loadErr := errors.New("upstream unavailable")

	_, err := e.GetOrLoad(context.Background(), "issue", "i:99", 30*time.Second, func(ctx context.Context) ([]byte, error) {
		return nil, loadErr
	})
	require.Error(t, err)
	var clf *CacheLoadFailed
	require.True(t, errors.As(err, &clf))
	require.Equal(t, "issue", clf.Cache)
	require.Equal(t, "i:99", clf.Key)
	require.ErrorIs(t, err, loadErr)

	_, hit, err := e.Get("issue", "i:99")
	require.NoError(t, err)
	require.False(t, hit, "a failed load must never populate the store")
}

func TestInvalidateRemovesEntry(t *testing.T) {
	e := newTestEngine(t, "node-a")
	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte("v"), 30*time.Second))
	require.NoError(t, e.Invalidate(context.Background(), "issue", "i:1"))

	_, hit, err := e.Get("issue", "i:1")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestInvalidateAllClearsCache(t *testing.T) {
	e := newTestEngine(t, "node-a")
	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte("v"), 30*time.Second))
	require.NoError(t, e.Put(context.Background(), "issue", "i:2", []byte("v"), 30*time.Second))
	require.NoError(t, e.InvalidateAll(context.Background(), "issue"))

	_, hit1, _ := e.Get("issue", "i:1")
	_, hit2, _ := e.Get("issue", "i:2")
	require.False(t, hit1)
	require.False(t, hit2)
}

func TestInvalidateByPrefixRemovesMatchingKeys(t *testing.T) {
	e := newTestEngine(t, "node-a")
	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte("v"), 30*time.Second))
	require.NoError(t, e.Put(context.Background(), "issue", "i:2", []byte("v"), 30*time.Second))
	require.NoError(t, e.Put(context.Background(), "issue", "p:1", []byte("v"), 30*time.Second))

	require.NoError(t, e.InvalidateByPrefix(context.Background(), "issue", "i:"))

	keys := e.ListKeys("issue", "", 0, 0)
	require.Equal(t, []string{"p:1"}, keys)
}

func TestShutdownRejectsSubsequentOperations(t *testing.T) {
	e, err := New(testConfig(t, "node-a"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, e.Shutdown(ctx))

	_, _, err = e.Get("issue", "i:1")
	require.ErrorIs(t, err, ErrShutdown)

	err = e.Put(context.Background(), "issue", "i:1", []byte("v"), time.Second)
	require.ErrorIs(t, err, ErrShutdown)

	require.NoError(t, e.Shutdown(ctx), "shutdown must be idempotent")
}

func TestListCachesAndListKeys(t *testing.T) {
	e := newTestEngine(t, "node-a")
	require.NoError(t, e.Put(context.Background(), "issue", "i:1", []byte("v"), 30*time.Second))
	require.NoError(t, e.Put(context.Background(), "issue", "i:2", []byte("v"), 30*time.Second))

	caches := e.ListCaches()
	info, ok := caches["issue"]
	require.True(t, ok)
	require.EqualValues(t, store.LRU, info.Config.Eviction)
	require.EqualValues(t, 2, info.Stats.Size)

	keys := e.ListKeys("issue", "", 0, 0)
	require.Equal(t, []string{"i:1", "i:2"}, keys)

	keys = e.ListKeys("issue", "", 1, 1)
	require.Equal(t, []string{"i:2"}, keys)
}

func TestClusterViewReflectsStaticPeers(t *testing.T) {
	cfg := testConfig(t, "node-a")
	cfg.Discovery = config.DiscoveryConfig{Type: "static", Peers: []string{"node-b:9999"}}

	e, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})

	view := e.ClusterView()
	require.Equal(t, "node-a", view.OwnNodeID)
	require.Contains(t, view.KnownPeers, "node-b:9999")
	require.Contains(t, view.ActivePeers, "node-b:9999")
}

func TestKeyOwnerIsDeterministic(t *testing.T) {
	e := newTestEngine(t, "node-a")

	owner1, ok1 := e.KeyOwner("some-key")
	owner2, ok2 := e.KeyOwner("some-key")
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, owner1, owner2)
	require.Equal(t, "node-a", owner1, "single-node ring must own every key")
}

func TestAddPeerUpdatesRingAndMembership(t *testing.T) {
	e := newTestEngine(t, "node-a")

	e.AddPeer("node-b:7000")
	require.True(t, e.membership.IsActive("node-b:7000"))
	require.Contains(t, e.ring.AllNodes(), "node-b:7000")

	e.RemovePeer("node-b:7000")
	require.False(t, e.membership.IsActive("node-b:7000"))
}

func TestTwoNodeInvalidationPropagation(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)
	addrA := fmt.Sprintf("127.0.0.1:%d", portA)
	addrB := fmt.Sprintf("127.0.0.1:%d", portB)

	cfgA := config.Config{
		NodeID: addrA, AdvertiseAddr: addrA, CommunicationPort: portA,
		HeartbeatIntervalMS: 200, HeartbeatTimeoutMS: 600, FailureThreshold: 3,
		Caches: map[string]config.Cache{"c": {TTL: "PT30S", EvictionPolicy: "LRU", MaxEntries: 100, MemoryCapMB: 8, ReplicationMode: "INVALIDATE"}},
	}
	cfgB := cfgA
	cfgB.NodeID = addrB
	cfgB.AdvertiseAddr = addrB
	cfgB.CommunicationPort = portB
	cfgA.Discovery = config.DiscoveryConfig{Type: "static", Peers: []string{addrB}}
	cfgB.Discovery = config.DiscoveryConfig{Type: "static", Peers: []string{addrA}}
	cfgA.DispatchMode = "sync"
	cfgB.DispatchMode = "sync"

	nodeA, err := New(cfgA, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		nodeA.Shutdown(ctx)
	}()

	nodeB, err := New(cfgB, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		nodeB.Shutdown(ctx)
	}()

	require.NoError(t, nodeA.Put(context.Background(), "c", "k1", []byte("v"), time.Minute))
	require.NoError(t, nodeB.Put(context.Background(), "c", "k1", []byte("v"), time.Minute))

	require.NoError(t, nodeA.Invalidate(context.Background(), "c", "k1"))

	_, hit, err := nodeB.Get("c", "k1")
	require.NoError(t, err)
	require.False(t, hit, "invalidation from node A must propagate to node B")
}

func TestTwoNodeReplicationPropagation(t *testing.T) {
	portA := freePort(t)
	portB := freePort(t)
	addrA := fmt.Sprintf("127.0.0.1:%d", portA)
	addrB := fmt.Sprintf("127.0.0.1:%d", portB)

	cfgA := config.Config{
		NodeID: addrA, AdvertiseAddr: addrA, CommunicationPort: portA,
		HeartbeatIntervalMS: 200, HeartbeatTimeoutMS: 600, FailureThreshold: 3,
		DispatchMode: "sync",
		Caches:       map[string]config.Cache{"c": {TTL: "PT1M", EvictionPolicy: "LRU", MaxEntries: 100, MemoryCapMB: 8, ReplicationMode: "REPLICATE"}},
	}
	cfgB := cfgA
	cfgB.NodeID = addrB
	cfgB.AdvertiseAddr = addrB
	cfgB.CommunicationPort = portB
	cfgA.Discovery = config.DiscoveryConfig{Type: "static", Peers: []string{addrB}}
	cfgB.Discovery = config.DiscoveryConfig{Type: "static", Peers: []string{addrA}}

	nodeA, err := New(cfgA, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		nodeA.Shutdown(ctx)
	}()

	nodeB, err := New(cfgB, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		nodeB.Shutdown(ctx)
	}()

	require.NoError(t, nodeA.Put(context.Background(), "c", "k2", []byte("v"), time.Minute))

	value, hit, err := nodeB.Get("c", "k2")
	require.NoError(t, err)
	require.True(t, hit, "replication from node A must propagate to node B")
	require.Equal(t, "v", string(value))
}
