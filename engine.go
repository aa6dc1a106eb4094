package meshcache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dreamware/meshcache/internal/config"
	"github.com/dreamware/meshcache/internal/coordinator"
	"github.com/dreamware/meshcache/internal/membership"
	"github.com/dreamware/meshcache/internal/ring"
	"github.com/dreamware/meshcache/internal/store"
	"github.com/dreamware/meshcache/internal/transport"
)

// Loader produces the value for a cache miss. Errors returned from Loader
// surface to the caller of GetOrLoad as *CacheLoadFailed and are never
// cached.
type Loader func(ctx context.Context) ([]byte, error)

// CacheInfo pairs a named cache's configuration with its current
// statistics, for the ListCaches observability hook.
type CacheInfo struct {
	Config store.CacheConfig
	Stats  store.CacheStats
}

// Engine is the public cache façade: the single handle a host application
// holds per node, wrapping the store, membership, hash ring, transport,
// and coordinator.
//
// Behavior:
//   - Every node in the mesh runs its own Engine; there is no distinguished
//     coordinator node (see the package doc's topology note).
//   - Get/GetOrLoad/Put/PutAll/Invalidate/InvalidateAll operate on the
//     local store and, for mutations, dispatch coordinator messages to
//     peers per each cache's configured replication mode.
//   - ListCaches/ListKeys/ClusterView/Stats are read-only observability
//     hooks that never mutate state or dispatch traffic.
//   - KeyOwner/KeyReplicas/AddPeer/RemovePeer expose the consistent-hash
//     ring directly, for host applications that want to route requests to
//     a key's owning node rather than rely on the coordinator's broadcast.
//
// Thread-safety: every exported method is safe for concurrent use from any
// number of goroutines; concurrent GetOrLoad calls for the same (cache,
// key) collapse into a single Loader invocation, hosted here via
// golang.org/x/sync/singleflight.
//
// The zero value is not usable; construct with New.
type Engine struct {
	nodeID   string
	selfAddr string
	cfg      config.Config
	logger   *zap.Logger

	store      *store.Store
	membership *membership.Membership
	ring       *ring.Ring
	client     *transport.Client
	server     *transport.Server
	coord      *coordinator.Coordinator

	flight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdown int32
}

// New wires a complete node: the store is pre-configured from cfg.Caches,
// membership is seeded with cfg.Discovery's static peer list (all starting
// active), the inbound transport server binds
// cfg.ListenAddr(), and the heartbeat/staleness schedulers and hash-ring
// reconciliation loop are started. It returns once the server is listening
// and background loops have been launched; it does not block.
func New(cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st := store.New()
	for name, c := range cfg.Caches {
		sc, err := c.ToStoreConfig()
		if err != nil {
			return nil, fmt.Errorf("meshcache: cache %q: %w", name, err)
		}
		if err := st.Configure(name, sc); err != nil {
			return nil, fmt.Errorf("meshcache: cache %q: %w", name, err)
		}
	}

	mem := membership.New(cfg.NodeID, membership.Params{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		HeartbeatTimeout:  cfg.HeartbeatTimeout(),
		FailureThreshold:  cfg.FailureThreshold,
	}, logger)
	for _, addr := range cfg.Discovery.Peers {
		mem.AddPeer(addr)
	}

	hashRing := ring.New()
	hashRing.AddNode(cfg.NodeID)
	for _, addr := range cfg.Discovery.Peers {
		hashRing.AddNode(addr)
	}

	client := transport.NewClient(transport.DefaultClientConfig(), logger)

	mode := coordinator.DispatchAsync
	if cfg.DispatchMode == string(coordinator.DispatchSync) {
		mode = coordinator.DispatchSync
	}
	coord := coordinator.New(coordinator.Config{NodeID: cfg.NodeID, Mode: mode}, st, mem, client, logger)

	server := transport.NewServer(transport.DefaultServerConfig(), coord, logger)
	if err := server.Listen(cfg.ListenAddr()); err != nil {
		return nil, fmt.Errorf("meshcache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		nodeID:     cfg.NodeID,
		selfAddr:   cfg.AdvertiseAddress(),
		cfg:        cfg,
		logger:     logger,
		store:      st,
		membership: mem,
		ring:       hashRing,
		client:     client,
		server:     server,
		coord:      coord,
		ctx:        ctx,
		cancel:     cancel,
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := server.Serve(ctx); err != nil {
			logger.Warn("transport server exited", zap.Error(err))
		}
	}()

	mem.Start(ctx, e.pingPeer)

	e.wg.Add(1)
	go e.runRingSync(ctx)

	logger.Info("engine started",
		zap.String("node_id", e.nodeID),
		zap.String("listen_addr", cfg.ListenAddr()),
		zap.Int("known_peers", len(cfg.Discovery.Peers)))

	return e, nil
}

// pingPeer is the membership.Pinger backing the heartbeat scheduler: it
// sends this node's id and advertise address so the receiver can recognize
// an unsolicited heartbeat from a node it never statically configured.
func (e *Engine) pingPeer(ctx context.Context, addr string) error {
	return e.client.SendHeartbeat(ctx, addr, transport.HeartbeatMessage{
		SenderNodeID: e.nodeID,
		SenderAddr:   e.selfAddr,
		SentAt:       time.Now(),
	})
}

// runRingSync keeps the hash ring's node set equal to the union of this
// node's own id and membership's current active-peer set. It polls on the
// heartbeat interval; the ring is best-effort and eventually consistent,
// like the rest of the cluster plane.
func (e *Engine) runRingSync(ctx context.Context) {
	defer e.wg.Done()

	interval := e.cfg.HeartbeatInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.syncRing()
	for {
		select {
		case <-ticker.C:
			e.syncRing()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) syncRing() {
	want := make(map[string]struct{}, len(e.membership.ActivePeers())+1)
	want[e.nodeID] = struct{}{}
	for _, addr := range e.membership.ActivePeers() {
		want[addr] = struct{}{}
	}

	for _, n := range e.ring.AllNodes() {
		if _, ok := want[n]; !ok {
			e.ring.RemoveNode(n)
		}
	}
	for n := range want {
		e.ring.AddNode(n)
	}
}

func (e *Engine) isShutdown() bool {
	return atomic.LoadInt32(&e.shutdown) != 0
}

// Get returns the current value for (cache, key). It never fails except
// with ErrShutdown.
func (e *Engine) Get(cache, key string) ([]byte, bool, error) {
	if e.isShutdown() {
		return nil, false, ErrShutdown
	}
	v, ok := e.store.Get(cache, key)
	return v, ok, nil
}

// GetOrLoad is the single-flight read-through path: a store hit returns
// immediately; a miss collapses concurrent callers for the same (cache,
// key) into exactly one invocation of loader, installs the result, and
// returns it to every waiter. A loader error surfaces as *CacheLoadFailed
// and is never cached; a call made after the loader has already populated
// the entry returns from the store without invoking loader again.
//
// The store lookup itself happens inside the single-flight call, not
// before it: every caller racing the same (cache, key) calls flight.Do, but
// only the one call selected to run the group's function ever touches
// e.store, so a herd of n concurrent misses that all arrive while the load
// is in flight records exactly one miss rather than n — parked callers
// receive the winner's result without issuing their own store lookup.
// Callers coalesce only while a call is in flight, so concurrent hits,
// which return almost at once, usually each record their own hit.
func (e *Engine) GetOrLoad(ctx context.Context, cache, key string, ttl time.Duration, loader Loader) ([]byte, error) {
	if e.isShutdown() {
		return nil, ErrShutdown
	}

	flightKey := cache + ":" + key
	v, err, _ := e.flight.Do(flightKey, func() (any, error) {
		if v, ok := e.store.Get(cache, key); ok {
			return v, nil
		}

		value, err := loader(ctx)
		if err != nil {
			return nil, &CacheLoadFailed{Cache: cache, Key: key, Cause: err}
		}

		if err := e.Put(ctx, cache, key, value, ttl); err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Put installs value under (cache, key) and, per the cache's configured
// replication mode, propagates the mutation to peers. This is the only
// producer of outbound coordinator messages for a value change. It fails
// only with ErrShutdown (async dispatch, the default) or a
// ClusterCommunicationFailed-wrapping error (sync dispatch).
func (e *Engine) Put(ctx context.Context, cache, key string, value []byte, ttl time.Duration) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	if err := e.store.Put(cache, key, value, ttl, e.nodeID); err != nil {
		return err
	}
	repl := e.store.Config(cache).ReplicationMode
	return e.coord.DispatchPut(ctx, cache, key, value, ttl, repl)
}

// PutAll installs entries in one store acquisition, then emits one
// coordinator message per entry per the cache's replication mode.
func (e *Engine) PutAll(ctx context.Context, cache string, entries map[string][]byte, ttl time.Duration) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	if err := e.store.PutAll(cache, entries, ttl, e.nodeID); err != nil {
		return err
	}
	repl := e.store.Config(cache).ReplicationMode
	for key, value := range entries {
		if err := e.coord.DispatchPut(ctx, cache, key, value, ttl, repl); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate removes (cache, key) locally and unconditionally propagates
// the invalidation to peers, regardless of the cache's replication mode.
func (e *Engine) Invalidate(ctx context.Context, cache, key string) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	e.store.Invalidate(cache, key)
	return e.coord.DispatchInvalidate(ctx, cache, key)
}

// InvalidateAll clears every entry in cache locally and propagates a
// whole-cache invalidation to peers.
func (e *Engine) InvalidateAll(ctx context.Context, cache string) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	e.store.InvalidateAll(cache)
	return e.coord.DispatchInvalidateAll(ctx, cache)
}

// InvalidateByPrefix removes every key in cache starting with prefix,
// locally and on peers.
func (e *Engine) InvalidateByPrefix(ctx context.Context, cache, prefix string) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	e.store.InvalidateByPrefix(cache, prefix)
	return e.coord.DispatchInvalidatePrefix(ctx, cache, prefix)
}

// Stats returns cache's current counters and gauges.
func (e *Engine) Stats(cache string) (store.CacheStats, error) {
	if e.isShutdown() {
		return store.CacheStats{}, ErrShutdown
	}
	return e.store.Stats(cache), nil
}

// Configure replaces cache's configuration, creating it if necessary.
// Existing entries are preserved.
func (e *Engine) Configure(cache string, cfg store.CacheConfig) error {
	if e.isShutdown() {
		return ErrShutdown
	}
	return e.store.Configure(cache, cfg)
}

// Prefetch is a best-effort hook that records the request. Acting on it
// would require a host-supplied registry of per-cache loaders, which is
// left to the host application.
func (e *Engine) Prefetch(cache string, keys []string) {
	e.logger.Debug("prefetch requested", zap.String("cache", cache), zap.Int("keys", len(keys)))
}

// ListCaches returns every named cache's configuration and statistics, for
// an external admin surface.
func (e *Engine) ListCaches() map[string]CacheInfo {
	names := e.store.CacheNames()
	out := make(map[string]CacheInfo, len(names))
	for _, name := range names {
		out[name] = CacheInfo{Config: e.store.Config(name), Stats: e.store.Stats(name)}
	}
	return out
}

// ListKeys returns a paginated, lexicographically sorted snapshot of
// cache's keys matching prefix. limit <= 0 means no limit.
func (e *Engine) ListKeys(cache, prefix string, limit, offset int) []string {
	keys := e.store.Keys(cache, prefix)
	sort.Strings(keys)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return []string{}
	}
	keys = keys[offset:]

	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	return keys
}

// ClusterView returns this node's id, known/active peers, and per-peer
// heartbeat bookkeeping.
func (e *Engine) ClusterView() membership.View {
	return e.membership.View()
}

// KeyOwner returns the node the consistent-hash ring currently assigns key
// to, for host applications that want to route a request to its owning
// node rather than broadcast it. It
// returns ("", false) iff the ring is empty, which cannot happen once New
// has returned (the ring always contains at least this node's own id).
func (e *Engine) KeyOwner(key string) (string, bool) {
	return e.ring.GetNode(key)
}

// KeyReplicas returns up to n distinct nodes the ring assigns key to, for
// replica placement decisions.
func (e *Engine) KeyReplicas(key string, n int) []string {
	return e.ring.GetNodes(key, n)
}

// AddPeer registers addr as a known, active peer and adds it to the hash
// ring, for dynamic peer discovery beyond the static startup list.
func (e *Engine) AddPeer(addr string) {
	e.membership.AddPeer(addr)
	e.ring.AddNode(addr)
}

// RemovePeer deletes addr from membership and the hash ring.
func (e *Engine) RemovePeer(addr string) {
	e.membership.RemovePeer(addr)
	e.ring.RemoveNode(addr)
}

// Shutdown drains the node:
//
//  1. Flip the shutdown flag, so every façade method begun after this
//     point returns ErrShutdown instead of touching the store.
//  2. Cancel the engine's root context and stop the heartbeat/staleness
//     schedulers.
//  3. Stop accepting new inbound connections and drain handlers already in
//     flight, bounded by ctx's deadline.
//  4. Wait for any outstanding async coordinator dispatch to finish.
//  5. Close every pooled outbound socket.
//
// It is idempotent: calling it more than once returns nil on every call
// after the first, without repeating the drain sequence.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&e.shutdown, 0, 1) {
		return nil
	}

	e.cancel()
	e.membership.Stop()

	serverErr := e.server.Shutdown(ctx)
	e.coord.Wait()
	e.client.Close()
	e.wg.Wait()

	e.logger.Info("engine shut down", zap.String("node_id", e.nodeID))
	return serverErr
}
