package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dreamware/meshcache/internal/codec"
)

// ClientConfig tunes the outbound connection pool, retry policy, and
// circuit breaker.
type ClientConfig struct {
	DialTimeout  time.Duration // connect timeout, default 5s
	WriteTimeout time.Duration // default 10s
	ReadTimeout  time.Duration // default 10s

	RetryAttempts  int           // total attempts per logical send, default 3
	RetryWait      time.Duration // fixed wait between attempts, default 100ms
	BreakerMinReq  uint32        // minimum calls before tripping, default 5
	BreakerFailPct float64       // failure ratio that opens the breaker, default 0.5
	BreakerOpenFor time.Duration // how long an open breaker stays open, default 30s
}

// DefaultClientConfig returns the standard production parameters.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DialTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    10 * time.Second,
		RetryAttempts:  3,
		RetryWait:      100 * time.Millisecond,
		BreakerMinReq:  5,
		BreakerFailPct: 0.5,
		BreakerOpenFor: 30 * time.Second,
	}
}

// peerConn wraps one pooled outbound connection and its own circuit
// breaker, so that a tripped breaker for one peer never affects sends to
// others. mu serializes the whole dial/write/read cycle: frames from two
// goroutines must never interleave on the same socket.
type peerConn struct {
	mu      sync.Mutex
	conn    net.Conn
	breaker *gobreaker.CircuitBreaker
}

// Client is a pool of outbound per-peer connections used to send
// invalidation, replication, and heartbeat messages across the mesh.
//
// Behavior:
//   - One pooled connection per peer address, lazily dialed on first send
//     and redialed whenever the pooled socket is found dead or spent.
//   - Each peer gets its own circuit breaker, so a tripped breaker for one
//     unreachable peer never blocks sends to others.
//   - A single logical send is attempted up to RetryAttempts times in total
//     with a fixed RetryWait backoff, all counted as one breaker outcome — a send is
//     never double-counted as multiple breaker calls even though it may
//     dial and write more than once.
//
// Thread-safety: safe for concurrent Send calls to the same or different
// peers; each peerConn serializes its own dial/write/read cycle, so sends
// to the same peer queue behind each other while sends to different peers
// proceed in parallel.
type Client struct {
	cfg    ClientConfig
	logger *zap.Logger

	mu    sync.Mutex
	peers map[string]*peerConn
}

// NewClient returns a Client using cfg. A nil logger installs a no-op
// logger.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, logger: logger, peers: make(map[string]*peerConn)}
}

func (c *Client) peerFor(addr string) *peerConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.peers[addr]
	if ok {
		return pc
	}

	settings := gobreaker.Settings{
		Name:        addr,
		MaxRequests: 1,
		// gobreaker counts outcomes cumulatively within the closed state
		// rather than over a call-count sliding window; clearing the counts
		// on a cycle bounds how long stale outcomes influence the trip
		// decision.
		Interval: c.cfg.BreakerOpenFor,
		Timeout:  c.cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.cfg.BreakerMinReq {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= c.cfg.BreakerFailPct
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				zap.String("peer", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}

	pc = &peerConn{breaker: gobreaker.NewCircuitBreaker(settings)}
	c.peers[addr] = pc
	return pc
}

// send delivers one message to addr through addr's circuit breaker. All
// retry attempts for this one logical send happen inside a single
// pc.breaker.Execute call, so the breaker's failure count advances by at
// most one per send regardless of how many dial/write/read attempts it
// took.
func (c *Client) send(ctx context.Context, addr, msgType string, msg any) (AckMessage, error) {
	pc := c.peerFor(addr)

	result, err := pc.breaker.Execute(func() (any, error) {
		var ack AckMessage
		err := c.sendWithRetry(ctx, addr, pc, msgType, msg, &ack)
		return ack, err
	})
	if err != nil {
		return AckMessage{}, fmt.Errorf("transport: send to %s: %w", addr, err)
	}
	return result.(AckMessage), nil
}

func (c *Client) sendWithRetry(ctx context.Context, addr string, pc *peerConn, msgType string, msg any, out *AckMessage) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryWait), uint64(c.cfg.RetryAttempts-1))
	policy = backoff.WithContext(policy, ctx)

	return backoff.Retry(func() error {
		ack, err := c.attemptSend(ctx, addr, pc, msgType, msg)
		if err != nil {
			return err
		}
		*out = ack
		return nil
	}, policy)
}

// attemptSend performs one full dial/write/read cycle under pc.mu. The
// receiving server replies to exactly one message per connection and then
// closes it, so the socket is spent after the ack is read and the next
// attempt redials.
func (c *Client) attemptSend(ctx context.Context, addr string, pc *peerConn, msgType string, msg any) (AckMessage, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.conn != nil && !probeConn(pc.conn) {
		pc.conn.Close()
		pc.conn = nil
	}
	if pc.conn == nil {
		d := net.Dialer{Timeout: c.cfg.DialTimeout, KeepAlive: 30 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return AckMessage{}, fmt.Errorf("transport: dial %s: %w", addr, err)
		}
		pc.conn = conn
	}
	conn := pc.conn

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := writeFrame(conn, msgType, msg); err != nil {
		conn.Close()
		pc.conn = nil
		if errors.Is(err, codec.ErrSerializationFailed) {
			// An unencodable message is not an I/O or timeout condition; it
			// would fail the same way on every attempt.
			return AckMessage{}, backoff.Permanent(err)
		}
		return AckMessage{}, err
	}

	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	ok, reason, err := readAck(conn)
	conn.Close()
	pc.conn = nil
	if err != nil {
		return AckMessage{}, fmt.Errorf("transport: read ack: %w", err)
	}
	if !ok {
		// A decoded ERROR ack is a definitive rejection, not an I/O or
		// timeout condition; retrying would just replay the same refusal.
		return AckMessage{}, backoff.Permanent(fmt.Errorf("transport: peer rejected message: %s", reason))
	}
	return AckMessage{OK: true}, nil
}

// probeConn checks whether an idle pooled connection is still alive without
// consuming protocol bytes: a speculative read under a 1ms deadline times
// out on a healthy idle socket and returns an error (EOF, reset) on a dead
// one.
func probeConn(conn net.Conn) bool {
	conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	one := make([]byte, 1)
	_, err := conn.Read(one)
	conn.SetReadDeadline(time.Time{})

	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return err == nil
}

// SendInvalidation delivers an InvalidationMessage to addr.
func (c *Client) SendInvalidation(ctx context.Context, addr string, msg InvalidationMessage) error {
	_, err := c.send(ctx, addr, TypeInvalidation, msg)
	return err
}

// SendReplication delivers a ReplicationMessage to addr.
func (c *Client) SendReplication(ctx context.Context, addr string, msg ReplicationMessage) error {
	_, err := c.send(ctx, addr, TypeReplication, msg)
	return err
}

// SendHeartbeat delivers a HeartbeatMessage to addr.
func (c *Client) SendHeartbeat(ctx context.Context, addr string, msg HeartbeatMessage) error {
	_, err := c.send(ctx, addr, TypeHeartbeat, msg)
	return err
}

// Close closes every pooled connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pc := range c.peers {
		pc.mu.Lock()
		if pc.conn != nil {
			pc.conn.Close()
			pc.conn = nil
		}
		pc.mu.Unlock()
	}
	return nil
}
