package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/meshcache/internal/membership"
	"github.com/dreamware/meshcache/internal/store"
	"github.com/dreamware/meshcache/internal/transport"
)

// DispatchMode selects whether outbound peer sends block the calling
// façade operation: async (the default) dispatches on a background
// goroutine and returns immediately, sync awaits all sends.
type DispatchMode string

const (
	DispatchAsync DispatchMode = "async"
	DispatchSync  DispatchMode = "sync"
)

// Sender is the subset of transport.Client the coordinator needs, kept as
// an interface so tests can substitute a fake without a live socket.
type Sender interface {
	SendInvalidation(ctx context.Context, addr string, msg transport.InvalidationMessage) error
	SendReplication(ctx context.Context, addr string, msg transport.ReplicationMessage) error
}

// Config tunes Coordinator construction.
type Config struct {
	NodeID string
	Mode   DispatchMode
}

// Coordinator links the store to the transport for one node: it translates
// local store mutations into outbound peer messages and applies inbound
// messages to the store and membership. The WaitGroup tracks outstanding
// async dispatches so shutdown can drain them.
type Coordinator struct {
	nodeID string
	mode   DispatchMode

	store      *store.Store
	membership *membership.Membership
	sender     Sender
	logger     *zap.Logger

	wg sync.WaitGroup
}

// New returns a Coordinator wiring st, mem, and sender together.
func New(cfg Config, st *store.Store, mem *membership.Membership, sender Sender, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = DispatchAsync
	}
	return &Coordinator{
		nodeID:     cfg.NodeID,
		mode:       mode,
		store:      st,
		membership: mem,
		sender:     sender,
		logger:     logger,
	}
}

// Wait blocks until every in-flight async dispatch has completed. Intended
// for use during graceful shutdown, after the caller has stopped accepting
// new local operations that could trigger further dispatch.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// DispatchPut propagates a put to active peers according to the cache's
// replication mode: INVALIDATE tells peers to drop the key and re-load on
// their own next miss, REPLICATE hands them the new value directly, NONE
// dispatches nothing.
func (c *Coordinator) DispatchPut(ctx context.Context, cacheName, key string, value []byte, ttl time.Duration, repl store.ReplicationMode) error {
	switch repl {
	case store.ReplicationInvalidate:
		return c.broadcastInvalidation(ctx, transport.InvalidationMessage{
			CacheName: cacheName, Key: key, OriginNodeID: c.nodeID,
		})
	case store.ReplicationReplicate:
		return c.broadcastReplication(ctx, transport.ReplicationMessage{
			CacheName: cacheName, Key: key, Value: value, TTL: ttl, OriginNodeID: c.nodeID,
		})
	default:
		return nil
	}
}

// DispatchInvalidate propagates a single-key invalidation, unconditionally
// regardless of the cache's replication mode.
func (c *Coordinator) DispatchInvalidate(ctx context.Context, cacheName, key string) error {
	return c.broadcastInvalidation(ctx, transport.InvalidationMessage{
		CacheName: cacheName, Key: key, OriginNodeID: c.nodeID,
	})
}

// DispatchInvalidateAll propagates a full-cache invalidation.
func (c *Coordinator) DispatchInvalidateAll(ctx context.Context, cacheName string) error {
	return c.broadcastInvalidation(ctx, transport.InvalidationMessage{
		CacheName: cacheName, InvalidateAll: true, OriginNodeID: c.nodeID,
	})
}

// DispatchInvalidatePrefix propagates an invalidation of every key in
// cacheName starting with prefix.
func (c *Coordinator) DispatchInvalidatePrefix(ctx context.Context, cacheName, prefix string) error {
	return c.broadcastInvalidation(ctx, transport.InvalidationMessage{
		CacheName: cacheName, Prefix: prefix, OriginNodeID: c.nodeID,
	})
}

func (c *Coordinator) broadcastInvalidation(ctx context.Context, msg transport.InvalidationMessage) error {
	return c.broadcast(ctx, func(ctx context.Context, addr string) error {
		return c.sender.SendInvalidation(ctx, addr, msg)
	})
}

func (c *Coordinator) broadcastReplication(ctx context.Context, msg transport.ReplicationMessage) error {
	return c.broadcast(ctx, func(ctx context.Context, addr string) error {
		return c.sender.SendReplication(ctx, addr, msg)
	})
}

// broadcast fans send out to every active peer. In async mode (the
// default) it returns immediately and failures are logged and swallowed —
// the local mutation that triggered dispatch has already completed and
// must not be undone. In sync mode it waits for every send and returns the
// first error, if any, wrapped as ClusterCommunicationFailed.
func (c *Coordinator) broadcast(ctx context.Context, send func(ctx context.Context, addr string) error) error {
	peers := c.membership.ActivePeers()
	if len(peers) == 0 {
		return nil
	}

	if c.mode == DispatchSync {
		var firstErr error
		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, addr := range peers {
			addr := addr
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := send(ctx, addr); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if firstErr != nil {
			return errClusterCommunicationFailed(firstErr)
		}
		return nil
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for _, addr := range peers {
			if err := send(ctx, addr); err != nil {
				c.logger.Warn("async dispatch to peer failed", zap.String("peer", addr), zap.Error(err))
			}
		}
	}()
	return nil
}

// HandleInvalidation implements transport.Handler's inbound side: it
// applies the invalidation to the local store without re-emitting outbound
// traffic, so an invalidation can never loop between nodes.
func (c *Coordinator) HandleInvalidation(ctx context.Context, msg transport.InvalidationMessage) error {
	switch {
	case msg.InvalidateAll:
		c.store.InvalidateAll(msg.CacheName)
	case msg.Prefix != "":
		c.store.InvalidateByPrefix(msg.CacheName, msg.Prefix)
	default:
		c.store.Invalidate(msg.CacheName, msg.Key)
	}
	return nil
}

// HandleReplication implements transport.Handler's inbound side: it
// applies the replicated value directly, last-writer-wins by local arrival
// time.
func (c *Coordinator) HandleReplication(ctx context.Context, msg transport.ReplicationMessage) error {
	return c.store.Put(msg.CacheName, msg.Key, msg.Value, msg.TTL, msg.OriginNodeID)
}

// HandleHeartbeat implements transport.Handler's inbound side: it informs
// membership that the sender is alive, resetting its failure counter and
// registering it as known if this is the first contact.
func (c *Coordinator) HandleHeartbeat(ctx context.Context, msg transport.HeartbeatMessage) error {
	c.membership.RecordHeartbeatSuccess(msg.SenderAddr)
	return nil
}
