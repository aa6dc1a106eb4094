package membership

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Params configures the heartbeat scheduler and failure detector.
type Params struct {
	HeartbeatInterval time.Duration // default 5s
	HeartbeatTimeout  time.Duration // default 15s
	FailureThreshold  int           // default 3 consecutive failures
}

// DefaultParams returns the standard production parameters.
func DefaultParams() Params {
	return Params{
		HeartbeatInterval: 5 * time.Second,
		HeartbeatTimeout:  15 * time.Second,
		FailureThreshold:  3,
	}
}

// peerState is the per-peer bookkeeping: liveness, last-heartbeat
// timestamp, and consecutive-failure count.
type peerState struct {
	active              bool
	lastHeartbeat       time.Time
	consecutiveFailures int
}

// View is a point-in-time snapshot of the cluster as this node sees it,
// for the Engine's ClusterView observability hook.
type View struct {
	OwnNodeID           string
	KnownPeers          []string
	ActivePeers         []string
	LastHeartbeat       map[string]time.Time
	ConsecutiveFailures map[string]int
}

// Membership owns the known/active peer sets for one node and runs the
// active-heartbeat failure detector over them.
//
// Behavior:
//   - Tracks every peer this node knows about (KnownPeers) and the subset
//     currently believed reachable (ActivePeers).
//   - Two independent background loops, started by Start, drive the state
//     machine: one dispatches a heartbeat to every known peer on
//     HeartbeatInterval, the other re-evaluates staleness (peers that
//     haven't been heard from in HeartbeatTimeout) on HeartbeatTimeout/2.
//   - A peer becomes inactive either by consecutive send failures
//     reaching FailureThreshold, or by its last-heartbeat timestamp aging
//     past HeartbeatTimeout — whichever happens first.
//
// Thread-safety: all exported methods are safe for concurrent use; a peer
// is never observable as simultaneously active and absent from the known
// set because both are mutated together under the same lock.
type Membership struct {
	ownNodeID string
	params    Params
	logger    *zap.Logger

	mu    sync.RWMutex
	peers map[string]*peerState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Membership for one node, ready to track peers and run the
// failure detector once Start is called.
//
// The instance starts with:
//   - An empty peer map (seed it with AddPeer before or after Start)
//   - No background tasks running (Start launches them)
//
// Parameters:
//   - ownNodeID: this node's identity, echoed in View snapshots
//   - params: heartbeat timing and failure threshold
//   - logger: structured logger for state transitions; nil installs a
//     no-op logger
//
// Returns:
//   - Initialized Membership ready for AddPeer/Start
func New(ownNodeID string, params Params, logger *zap.Logger) *Membership {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Membership{
		ownNodeID: ownNodeID,
		params:    params,
		logger:    logger,
		peers:     make(map[string]*peerState),
	}
}

// AddPeer registers addr as known and immediately active — statically
// configured peers start in the active set and are demoted only by the
// failure detector. Re-adding an already-known peer is a no-op.
func (m *Membership) AddPeer(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.peers[addr]; exists {
		return
	}
	m.peers[addr] = &peerState{active: true, lastHeartbeat: time.Now()}
}

// RemovePeer deletes addr from both the known and active sets in one
// step, so no observer can catch the peer active but unknown. Removing an
// unknown peer is a no-op. The heartbeat loop stops pinging the peer on
// its next tick.
func (m *Membership) RemovePeer(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.peers, addr)
}

// KnownPeers returns every peer address registered, regardless of
// liveness.
//
// Returns:
//   - A freshly allocated slice in no particular order; callers may
//     retain or mutate it freely
//
// Thread safety:
//   - Takes the read lock; safe alongside concurrent mutations
func (m *Membership) KnownPeers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peers))
	for addr := range m.peers {
		out = append(out, addr)
	}
	return out
}

// ActivePeers returns the subset of known peers currently considered
// reachable. This is the set the coordinator fans mutations out to and
// the ring keeps in sync with.
//
// Returns:
//   - A freshly allocated slice in no particular order; callers may
//     retain or mutate it freely
//
// Thread safety:
//   - Takes the read lock; safe alongside concurrent mutations
func (m *Membership) ActivePeers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.peers))
	for addr, st := range m.peers {
		if st.active {
			out = append(out, addr)
		}
	}
	return out
}

// IsActive reports whether addr is currently in the active set. An
// unknown peer is not active.
func (m *Membership) IsActive(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.peers[addr]
	return ok && st.active
}

// RecordHeartbeatSuccess reports a successful heartbeat exchange with addr.
//
// Behavior:
//   - Resets addr's consecutive-failure count to 0 and marks it active
//     (Inactive -> Active or Active -> Active).
//   - Registers addr as known if this is the first time we've heard from
//     it, which covers the case of an unsolicited inbound heartbeat from a
//     peer we didn't statically configure.
//   - Logs at info level only on the Inactive -> Active transition, not on
//     every successful heartbeat, to avoid flooding logs during steady
//     state.
//
// Parameters:
//   - addr: the peer's dialable address, as carried in HeartbeatMessage.
func (m *Membership) RecordHeartbeatSuccess(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.peers[addr]
	if !ok {
		st = &peerState{}
		m.peers[addr] = st
	}
	wasInactive := !st.active
	st.active = true
	st.consecutiveFailures = 0
	st.lastHeartbeat = time.Now()
	if wasInactive {
		m.logger.Info("peer recovered", zap.String("peer", addr))
	}
}

// RecordHeartbeatFailure reports a failed heartbeat exchange with addr.
//
// Behavior:
//   - Increments addr's consecutive-failure count
//   - Transitions the peer to inactive once the count reaches
//     FailureThreshold (Active -> Inactive); further failures keep
//     counting so observers can see how long the peer has been down
//   - Unknown peers are ignored: a failure against a peer that was
//     concurrently removed must not resurrect it
//
// Parameters:
//   - addr: the peer's dialable address, as used by the ping loop
func (m *Membership) RecordHeartbeatFailure(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.peers[addr]
	if !ok {
		return
	}
	st.consecutiveFailures++
	if st.active && st.consecutiveFailures >= m.params.FailureThreshold {
		st.active = false
		m.logger.Warn("peer marked inactive after consecutive heartbeat failures",
			zap.String("peer", addr), zap.Int("failures", st.consecutiveFailures))
	}
}

// reevaluateStaleness marks any peer whose last heartbeat is older than
// HeartbeatTimeout as inactive, independent of the failure counter — a
// peer can go quiet without a single send ever failing.
func (m *Membership) reevaluateStaleness(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, st := range m.peers {
		if st.active && now.Sub(st.lastHeartbeat) > m.params.HeartbeatTimeout {
			st.active = false
			m.logger.Warn("peer marked inactive due to stale heartbeat", zap.String("peer", addr))
		}
	}
}

// View returns a point-in-time snapshot of the peer sets and per-peer
// heartbeat bookkeeping.
func (m *Membership) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v := View{
		OwnNodeID:           m.ownNodeID,
		KnownPeers:          make([]string, 0, len(m.peers)),
		ActivePeers:         make([]string, 0, len(m.peers)),
		LastHeartbeat:       make(map[string]time.Time, len(m.peers)),
		ConsecutiveFailures: make(map[string]int, len(m.peers)),
	}
	for addr, st := range m.peers {
		v.KnownPeers = append(v.KnownPeers, addr)
		if st.active {
			v.ActivePeers = append(v.ActivePeers, addr)
		}
		v.LastHeartbeat[addr] = st.lastHeartbeat
		v.ConsecutiveFailures[addr] = st.consecutiveFailures
	}
	return v
}

// Pinger sends a heartbeat to addr and reports whether it succeeded. The
// transport package supplies the real implementation; tests supply a fake.
type Pinger func(ctx context.Context, addr string) error

// Start launches the two periodic background tasks and returns
// immediately; it does not block the caller.
//
// Behavior:
//   - One goroutine pings every known peer every HeartbeatInterval.
//   - A second goroutine re-evaluates staleness every HeartbeatTimeout/2,
//     independent of the ping loop, so a peer that stops responding is
//     marked inactive even if its next scheduled ping hasn't fired yet.
//   - Both goroutines exit when ctx is canceled or Stop is called.
//
// Parameters:
//   - ctx: parent context; canceling it stops both background tasks.
//   - ping: invoked once per known peer per heartbeat tick; the transport
//     package supplies the real implementation, tests supply a fake.
//
// Call Stop to shut down and wait for both goroutines to exit.
func (m *Membership) Start(ctx context.Context, ping Pinger) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(2)
	go m.runHeartbeatLoop(ctx, ping)
	go m.runStalenessLoop(ctx)
}

// Stop cancels both background tasks and blocks until they have exited.
// It is safe to call before Start (a no-op) and the peer sets remain
// readable afterward; only the scheduling stops.
func (m *Membership) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// runHeartbeatLoop drives the ping schedule: one fan-out to every known
// peer per HeartbeatInterval tick, until ctx is canceled.
func (m *Membership) runHeartbeatLoop(ctx context.Context, ping Pinger) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.params.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.pingAllKnown(ctx, ping)
		case <-ctx.Done():
			return
		}
	}
}

// pingAllKnown dispatches a ping to every known peer, not only active
// ones, so that a recovered peer can be rediscovered. The heartbeat
// scheduler survives individual send failures: it never cancels a peer's
// future pings on failure, it only records the failure.
func (m *Membership) pingAllKnown(ctx context.Context, ping Pinger) {
	for _, addr := range m.KnownPeers() {
		addr := addr
		go func() {
			if err := ping(ctx, addr); err != nil {
				m.RecordHeartbeatFailure(addr)
				return
			}
			m.RecordHeartbeatSuccess(addr)
		}()
	}
}

// runStalenessLoop re-evaluates peer staleness every HeartbeatTimeout/2,
// until ctx is canceled. Running at half the timeout bounds how long a
// quiet peer can linger in the active set past its deadline.
func (m *Membership) runStalenessLoop(ctx context.Context) {
	defer m.wg.Done()
	interval := m.params.HeartbeatTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.reevaluateStaleness(time.Now())
		case <-ctx.Done():
			return
		}
	}
}
