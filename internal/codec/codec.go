package codec

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Version1 is the only envelope version this release understands. It is
// written as the first byte of every encoded payload so a future release
// can change the wire format without breaking readers that only know v1.
const Version1 byte = 0x01

// ErrSerializationFailed is the sentinel a caller can match with errors.Is
// to detect a serialization failure, whether it originated from encoding
// or decoding.
var ErrSerializationFailed = errors.New("codec: serialization failed")

// Encode turns an arbitrary value into a versioned, self-describing byte
// sequence. It is deterministic for a given value: the same value encodes
// to the same bytes on a single node (map key order notwithstanding, which
// msgpack canonicalizes by iteration order rather than sorting — callers
// that need bit-for-bit stability across runs should avoid map-typed
// payloads with more than one key).
func Encode(value any) ([]byte, error) {
	body, err := msgpack.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrSerializationFailed, err)
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, Version1)
	out = append(out, body...)
	return out, nil
}

// Decode reverses Encode, populating out (which must be a pointer) with the
// decoded value. It rejects envelopes with an unrecognized version byte or
// a truncated/malformed body, surfacing both as ErrSerializationFailed.
func Decode(data []byte, out any) error {
	if len(data) < 1 {
		return fmt.Errorf("%w: empty payload", ErrSerializationFailed)
	}
	if data[0] != Version1 {
		return fmt.Errorf("%w: unknown envelope version %d", ErrSerializationFailed, data[0])
	}
	if err := msgpack.Unmarshal(data[1:], out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrSerializationFailed, err)
	}
	return nil
}
