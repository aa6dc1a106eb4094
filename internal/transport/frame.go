package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dreamware/meshcache/internal/codec"
)

// maxFrameBytes bounds a single frame's type and payload lengths, guarding
// the reader against a corrupt or hostile length prefix driving an
// unbounded allocation.
const maxFrameBytes = 64 << 20 // 64MiB

var errFrameTooLarge = errors.New("transport: frame exceeds maximum size")

// writeFrame writes one [typeLen][type][payloadLen][payload] frame to w.
// msg is codec-encoded before framing.
func writeFrame(w io.Writer, msgType string, msg any) error {
	payload, err := codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode payload: %w", err)
	}
	return writeRawFrame(w, msgType, payload)
}

func writeRawFrame(w io.Writer, msgType string, payload []byte) error {
	typeBytes := []byte(msgType)
	if len(typeBytes) > maxFrameBytes || len(payload) > maxFrameBytes {
		return errFrameTooLarge
	}

	header := make([]byte, 4+len(typeBytes)+4)
	binary.BigEndian.PutUint32(header[0:4], uint32(len(typeBytes)))
	copy(header[4:], typeBytes)
	binary.BigEndian.PutUint32(header[4+len(typeBytes):], uint32(len(payload)))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("transport: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("transport: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one frame from r, returning its type string and raw
// payload bytes (still codec-encoded; caller decodes into the concrete
// message type once it knows msgType).
func readFrame(r io.Reader) (msgType string, payload []byte, err error) {
	typeLen, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}
	if typeLen > maxFrameBytes {
		return "", nil, errFrameTooLarge
	}
	typeBytes := make([]byte, typeLen)
	if _, err := io.ReadFull(r, typeBytes); err != nil {
		return "", nil, fmt.Errorf("transport: read frame type: %w", err)
	}

	payloadLen, err := readUint32(r)
	if err != nil {
		return "", nil, err
	}
	if payloadLen > maxFrameBytes {
		return "", nil, errFrameTooLarge
	}
	payload = make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, fmt.Errorf("transport: read frame payload: %w", err)
	}

	return string(typeBytes), payload, nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("transport: read length prefix: %w", err)
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

// ackOK and ackErrorPrefix are the UTF-8 tokens the acknowledgment
// encodes. The reply uses its own distinct framing — a uint16 length
// prefix rather than the request's two-uint32 frame header — so an ack can
// never be misread as the start of a request frame.
const ackOK = "OK"
const ackErrorPrefix = "ERROR"

const maxAckBytes = 1<<16 - 1 // uint16 length prefix ceiling

func writeAck(w io.Writer, ok bool, reason string) error {
	line := ackOK
	if !ok {
		line = ackErrorPrefix
		if reason != "" {
			line += ": " + reason
		}
	}
	body := []byte(line)
	if len(body) > maxAckBytes {
		body = body[:maxAckBytes]
	}

	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write ack length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("transport: write ack: %w", err)
	}
	return nil
}

// readAck reads a single uint16-length-prefixed ack from r. Anything but
// an exact "OK" body is failure.
func readAck(r io.Reader) (ok bool, reason string, err error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return false, "", fmt.Errorf("transport: read ack length: %w", err)
	}
	n := binary.BigEndian.Uint16(lenBuf[:])

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return false, "", fmt.Errorf("transport: read ack body: %w", err)
	}

	line := string(body)
	if line == ackOK {
		return true, "", nil
	}
	return false, strings.TrimPrefix(strings.TrimPrefix(line, ackErrorPrefix), ": "), nil
}
