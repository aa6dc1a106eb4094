package transport

import (
	"bytes"
	"testing"

	"github.com/dreamware/meshcache/internal/codec"
)

func TestFrameRoundTrip(t *testing.T) {
	msg := InvalidationMessage{CacheName: "users", Key: "u:1", OriginNodeID: "node-a"}

	var buf bytes.Buffer
	if err := writeFrame(&buf, TypeInvalidation, msg); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	msgType, payload, err := readFrame(&buf)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if msgType != TypeInvalidation {
		t.Fatalf("expected type %q, got %q", TypeInvalidation, msgType)
	}

	var got InvalidationMessage
	if err := codec.Decode(payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != msg {
		t.Fatalf("expected %+v, got %+v", msg, got)
	}
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	if err := writeRawFrame(&buf, "X", make([]byte, 10)); err != nil {
		t.Fatalf("writeRawFrame: %v", err)
	}

	// Corrupt the payload-length prefix to something absurd.
	data := buf.Bytes()
	typeLen := int(data[3])
	lenOffset := 4 + typeLen
	data[lenOffset] = 0xFF
	data[lenOffset+1] = 0xFF
	data[lenOffset+2] = 0xFF
	data[lenOffset+3] = 0xFF

	_, _, err := readFrame(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for oversized length prefix")
	}
}

func TestAckRoundTripOK(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAck(&buf, true, ""); err != nil {
		t.Fatalf("writeAck: %v", err)
	}
	ok, reason, err := readAck(&buf)
	if err != nil {
		t.Fatalf("readAck: %v", err)
	}
	if !ok || reason != "" {
		t.Fatalf("expected ok ack, got ok=%v reason=%q", ok, reason)
	}
}

func TestAckRoundTripError(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAck(&buf, false, "boom"); err != nil {
		t.Fatalf("writeAck: %v", err)
	}
	ok, reason, err := readAck(&buf)
	if err != nil {
		t.Fatalf("readAck: %v", err)
	}
	if ok || reason != "boom" {
		t.Fatalf("expected error ack with reason boom, got ok=%v reason=%q", ok, reason)
	}
}
