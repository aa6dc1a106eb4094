package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/meshcache/internal/codec"
)

// Handler processes one decoded inbound message and reports success. The
// coordinator package supplies the real dispatch logic (invalidation ->
// store.Invalidate, replication -> store.Put, heartbeat ->
// membership.RecordHeartbeatSuccess); tests supply a fake.
type Handler interface {
	HandleInvalidation(ctx context.Context, msg InvalidationMessage) error
	HandleReplication(ctx context.Context, msg ReplicationMessage) error
	HandleHeartbeat(ctx context.Context, msg HeartbeatMessage) error
}

// ServerConfig tunes the inbound listener.
type ServerConfig struct {
	// ReadTimeout is the per-frame read deadline. It defaults to 10s, the
	// same read/write timeout the client uses, so a slow-but-alive peer is
	// never timed out on one side of a connection while still within
	// budget on the other.
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration // default 10s drain budget
}

// DefaultServerConfig returns the standard production parameters.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{ReadTimeout: 10 * time.Second, ShutdownTimeout: 10 * time.Second}
}

// Server accepts inbound mesh connections and dispatches decoded frames to
// a Handler, one goroutine per connection.
//
// Behavior:
//   - Each accepted connection carries exactly one framed message; the
//     server reads it, dispatches to Handler, writes the ack, and closes
//     the connection. The peer redials for its next send.
//   - Every accepted connection is tracked so Shutdown can close any still
//     in flight once its grace period elapses.
//   - A read that exceeds ReadTimeout, or a frame that fails to decode, is
//     logged and the connection is dropped without affecting other
//     in-flight connections.
//
// Thread-safety: Serve/Shutdown are not meant to be called concurrently
// with each other, but connection handling itself is fully concurrent —
// one goroutine per accepted connection, coordinated only by the conns map
// under mu.
type Server struct {
	cfg     ServerConfig
	handler Handler
	logger  *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	draining bool
}

// NewServer returns a Server dispatching to handler. A nil logger installs
// a no-op logger.
func NewServer(cfg ServerConfig, handler Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, handler: handler, logger: logger, conns: make(map[net.Conn]struct{})}
}

// ListenAndServe binds addr and accepts connections until ctx is canceled
// or Shutdown is called. It blocks until the accept loop exits.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen binds addr without accepting connections yet. Serve must be
// called afterward to run the accept loop. Split from ListenAndServe so
// callers (and tests) can learn the bound address before the loop starts,
// which matters when addr uses port 0.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("transport server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Serve runs the accept loop against a listener already bound by Listen.
// It blocks until ctx is canceled or an unrecoverable accept error occurs.
func (s *Server) Serve(ctx context.Context) error {
	ln := s.listener
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Warn("accept error", zap.Error(err))
				return err
			}
		}

		s.mu.Lock()
		if s.draining {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

// Addr returns the bound listener address, useful when the caller passed
// port 0 to let the OS choose.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// serveConn reads exactly one framed message, dispatches it, writes an
// ASCII ack, and closes. A peer wanting to send another message simply
// dials a fresh connection, which is what Client.attemptSend does.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	msgType, payload, err := readFrame(conn)
	if err != nil {
		s.logger.Warn("failed to decode inbound frame", zap.Error(err))
		return
	}

	ack := s.dispatch(ctx, msgType, payload)
	conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout))
	writeAck(conn, ack.OK, ack.Error)
}

func (s *Server) dispatch(ctx context.Context, msgType string, payload []byte) AckMessage {
	var err error
	switch msgType {
	case TypeInvalidation:
		var msg InvalidationMessage
		if err = codec.Decode(payload, &msg); err == nil {
			err = s.handler.HandleInvalidation(ctx, msg)
		}
	case TypeReplication:
		var msg ReplicationMessage
		if err = codec.Decode(payload, &msg); err == nil {
			err = s.handler.HandleReplication(ctx, msg)
		}
	case TypeHeartbeat:
		var msg HeartbeatMessage
		if err = codec.Decode(payload, &msg); err == nil {
			err = s.handler.HandleHeartbeat(ctx, msg)
		}
	default:
		err = fmt.Errorf("transport: unknown message type %q", msgType)
	}

	if err != nil {
		s.logger.Warn("message handling failed", zap.String("type", msgType), zap.Error(err))
		return AckMessage{OK: false, Error: err.Error()}
	}
	return AckMessage{OK: true}
}

// Shutdown stops accepting new connections, closes the listener, and waits
// up to ShutdownTimeout for in-flight connections to drain before forcibly
// closing them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		s.forceCloseAll()
		return fmt.Errorf("transport: shutdown timed out after %s, forced connection close", s.cfg.ShutdownTimeout)
	case <-ctx.Done():
		s.forceCloseAll()
		return ctx.Err()
	}
}

func (s *Server) forceCloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
