package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   string `json:"key,omitempty"`   // Used for: Set, Get, Remove requests
	Value []byte `json:"value,omitempty"` // Used for: Set (request), Get (response)

	// Response only fields
	Ok      bool   `json:"ok,omitempty"`       // key_found for Get and Remove responses
	Err     string `json:"err,omitempty"`      // Empty if no error, otherwise contains the error message
	ErrCode uint8  `json:"err_code,omitempty"` // Dispatch error code, lets clients distinguish e.g. backpressure
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVSet,
		Key:     key,
		Value:   value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVSet,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVGet,
		Key:     key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, found bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVGet,
		Value:   value,
		Ok:      found,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewRemoveRequest creates a new Remove request
func NewRemoveRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVRemove,
		Key:     key,
	}
}

// NewRemoveResponse creates a new Remove response
func NewRemoveResponse(found bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVRemove,
		Ok:      found,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a generic error response
func NewErrorResponse(errMsg string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     errMsg,
	}
}

// --------------------------------------------------------------------------
// Message Types
// --------------------------------------------------------------------------

type MessageType uint8

const (
	MsgTUnknown MessageType = iota
	MsgTError               // Indicates an error occurred

	// Key-value operations
	MsgTKVSet    // Set a key-value pair
	MsgTKVGet    // Get a value by key
	MsgTKVRemove // Remove a key-value pair
)

func (t MessageType) String() string {
	switch t {
	case MsgTError:
		return "Error"
	case MsgTKVSet:
		return "Set"
	case MsgTKVGet:
		return "Get"
	case MsgTKVRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes the message type as its string name
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses a message type from its string name
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "Error":
		*t = MsgTError
	case "Set":
		*t = MsgTKVSet
	case "Get":
		*t = MsgTKVGet
	case "Remove":
		*t = MsgTKVRemove
	case "Unknown":
		*t = MsgTUnknown
	default:
		return fmt.Errorf("unknown message type: %q", s)
	}
	return nil
}
