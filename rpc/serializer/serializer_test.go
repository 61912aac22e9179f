package serializer

import (
	"reflect"
	"testing"

	"github.com/tomkarw/kiwi-store/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTKVGet},

		// Set request
		{
			MsgType: common.MsgTKVSet,
			Key:     "test-key",
			Value:   []byte("test-value"),
		},

		// Get request
		{
			MsgType: common.MsgTKVGet,
			Key:     "test-key",
		},

		// Get response (found)
		{
			MsgType: common.MsgTKVGet,
			Value:   []byte("test-value"),
			Ok:      true,
		},

		// Remove response (not found)
		{
			MsgType: common.MsgTKVRemove,
		},

		// Error response with a code
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
			ErrCode: 2,
		},

		// Binary value with non-UTF8 bytes
		{
			MsgType: common.MsgTKVSet,
			Key:     "bin",
			Value:   []byte{0, 255, 128, 1, 2, 3},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for i, msg := range testMessages() {
				data, err := s.Serialize(msg)
				if err != nil {
					t.Fatalf("message %d: serialize failed: %v", i, err)
				}

				var got common.Message
				if err := s.Deserialize(data, &got); err != nil {
					t.Fatalf("message %d: deserialize failed: %v", i, err)
				}

				if !reflect.DeepEqual(msg, got) {
					t.Errorf("message %d: roundtrip mismatch:\nwant %+v\ngot  %+v", i, msg, got)
				}
			}
		})
	}
}

func TestDeserializeGarbage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			var msg common.Message
			if err := s.Deserialize([]byte{}, &msg); err == nil {
				t.Errorf("expected error on empty input")
			}
			if err := s.Deserialize([]byte{0xff}, &msg); err == nil {
				t.Errorf("expected error on truncated input")
			}
		})
	}
}

func TestBinaryTruncatedFields(t *testing.T) {
	s := NewBinarySerializer()
	data, err := s.Serialize(common.Message{MsgType: common.MsgTKVSet, Key: "key", Value: []byte("value")})
	if err != nil {
		t.Fatalf("serialize failed: %v", err)
	}

	// any cut inside a length-prefixed field must be detected
	var msg common.Message
	for cut := 1; cut < len(data); cut++ {
		if err := s.Deserialize(data[:cut], &msg); err == nil {
			t.Errorf("expected truncation error at cut %d", cut)
		}
	}
}
