package codec

import (
	"errors"
	"reflect"
	"testing"
)

type userRecord struct {
	Name string `msgpack:"name"`
	Age  int    `msgpack:"age"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "hello"},
		{"int", 42},
		{"map", map[string]string{"name": "Ada", "lang": "go"}},
		{"slice", []string{"a", "b", "c"}},
		{"bool", true},
		{"record", userRecord{Name: "Ada", Age: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if len(encoded) == 0 || encoded[0] != Version1 {
				t.Fatalf("expected version byte %d, got %v", Version1, encoded)
			}

			// Decode into a fresh value of the original's concrete type so
			// the comparison is exact — decoding into a bare interface
			// would surface msgpack's narrowest-width integer choices
			// rather than the caller's types.
			out := reflect.New(reflect.TypeOf(tt.value))
			if err := Decode(encoded, out.Interface()); err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got := out.Elem().Interface(); !reflect.DeepEqual(got, tt.value) {
				t.Fatalf("round trip mismatch: encoded %#v, decoded %#v", tt.value, got)
			}
		})
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	var out any
	err := Decode([]byte{0xFF, 0x00}, &out)
	if err == nil {
		t.Fatal("expected error for unknown version byte")
	}
	if !errors.Is(err, ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	var out any
	err := Decode(nil, &out)
	if !errors.Is(err, ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
}

func TestDecodeRejectsMalformedBody(t *testing.T) {
	var out struct{ X int }
	err := Decode([]byte{Version1, 0xc1}, &out)
	if !errors.Is(err, ErrSerializationFailed) {
		t.Fatalf("expected ErrSerializationFailed, got %v", err)
	}
}
