// Package transport implements the framed TCP wire protocol nodes use to
// exchange invalidation, replication, and heartbeat messages.
//
// # Overview
//
// The package has two halves: an outbound Client that pools one connection
// per peer behind retry and a circuit breaker, and an inbound Server that
// accepts connections and dispatches decoded messages to a Handler. The
// coordinator package supplies the real Handler; tests supply fakes.
//
// # Wire Format
//
// Every request is a single length-prefixed frame:
//
//	┌──────────────┬────────────┬──────────────┬─────────────┐
//	│ uint32 (BE)  │ bytes      │ uint32 (BE)  │ bytes       │
//	│ type length  │ type       │ payload len  │ payload     │
//	└──────────────┴────────────┴──────────────┴─────────────┘
//
// The type is one of the UTF-8 strings "INVALIDATION", "REPLICATION", or
// "HEARTBEAT"; the payload is the codec encoding of the matching record in
// messages.go. The receiver replies with a short acknowledgment framed as
// uint16 length + body, where the body is "OK" or "ERROR[: reason]" — a
// deliberately different framing from the request so an ack can never be
// misread as the start of a frame. Both directions cap lengths (64MiB for
// frames) so a corrupt prefix cannot drive an unbounded allocation.
//
// # Connection Model
//
// The server answers exactly one message per accepted connection: read
// frame, dispatch, write ack, close. The client therefore closes its socket
// after every attempt — once an ack is read, and also after a failed write
// or a failed ack read — and redials for the next send. The receive-side
// probe only runs when a pooled socket is still open at the start of a
// send.
//
// # Fault Tolerance
//
// Each logical send runs through two layers, per peer:
//
//	breaker.Execute ──► retry loop ──► dial / write / read ack
//
//   - Retry: up to 3 attempts with a fixed 100ms wait, retrying only I/O
//     and timeout conditions — a decoded ERROR ack is permanent
//   - Breaker: opens at a 50% failure ratio over at least 5 calls, stays
//     open 30s, then allows a probe. All retries of one send count as one
//     breaker outcome, never several
//   - Timeouts: 5s connect, 10s read/write, TCP keep-alive enabled
//
// A tripped breaker for one peer never affects sends to others.
//
// # Shutdown
//
// Server.Shutdown stops accepting, closes the listener, and waits up to
// 10s for in-flight handlers to drain before force-closing their
// connections. Client.Close closes every pooled socket.
//
// # Concurrency and Thread Safety
//
// Client is safe for concurrent sends: each peer's dial/write/read cycle
// runs under that peer's mutex, so sends to the same peer queue while
// sends to different peers proceed in parallel. The server handles each
// accepted connection on its own goroutine, coordinated only by the
// connection-tracking map used for shutdown.
//
// # Usage Example
//
//	srv := transport.NewServer(transport.DefaultServerConfig(), handler, logger)
//	if err := srv.Listen(":7050"); err != nil {
//	    return err
//	}
//	go srv.Serve(ctx)
//
//	client := transport.NewClient(transport.DefaultClientConfig(), logger)
//	err := client.SendInvalidation(ctx, "10.0.0.2:7050", transport.InvalidationMessage{
//	    CacheName: "users", Key: "u:1", OriginNodeID: "node-a",
//	})
//
// # See Also
//
// Related packages:
//   - internal/codec: payload encoding inside each frame
//   - internal/coordinator: the Handler behind the server
package transport
