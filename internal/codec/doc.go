// Package codec implements the wire serializer used for cached values and
// for the three inter-node message records (invalidation, replication,
// heartbeat).
//
// # Overview
//
// Encode and Decode are the only entry points. Every encoded payload is a
// one-byte version envelope followed by a MessagePack body
// (github.com/vmihailenco/msgpack/v5):
//
//	┌──────────────┬──────────────────────────────┐
//	│ version (1B) │ MessagePack-encoded body     │
//	└──────────────┴──────────────────────────────┘
//
// MessagePack is self-describing and tolerates schema evolution: new
// fields can be added to a record without breaking readers that don't
// know about them. The version byte is reserved for a future breaking
// change to the envelope itself — a reader that sees an unknown version
// rejects the payload instead of misparsing it.
//
// # Determinism
//
// Encoding is deterministic per value on a single node, with one caveat:
// map-typed payloads encode in map iteration order, so byte-for-byte
// stability across runs is only guaranteed for non-map values. Nothing in
// the wire protocol compares encoded bytes, so this only matters to
// callers who hash payloads themselves.
//
// # Error Handling
//
// Both directions surface failures wrapped in ErrSerializationFailed,
// matchable with errors.Is:
//   - Encode: the value cannot be represented (unsupported type)
//   - Decode: empty payload, unknown version byte, or malformed body
//
// # Usage Example
//
//	payload, err := codec.Encode(userRecord{Name: "Ada"})
//	if err != nil {
//	    return err
//	}
//
//	var out userRecord
//	if err := codec.Decode(payload, &out); err != nil {
//	    // errors.Is(err, codec.ErrSerializationFailed) == true
//	}
//
// # See Also
//
// Related packages:
//   - internal/transport: frames codec payloads onto the wire
package codec
