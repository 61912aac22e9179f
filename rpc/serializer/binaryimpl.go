package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/tomkarw/kiwi-store/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey     byte = 1 << 0
	hasValue   byte = 1 << 1
	hasOk      byte = 1 << 2
	hasErr     byte = 1 << 3
	hasErrCode byte = 1 << 4
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type, flags get filled in last
	result[0] = byte(msg.MsgType)

	var flags byte
	pos := 2 // Start after MsgType and flags

	if msg.Key != "" {
		flags |= hasKey
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Key)))
		pos += 4
		copy(result[pos:], msg.Key)
		pos += len(msg.Key)
	}

	if len(msg.Value) > 0 {
		flags |= hasValue
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Value)))
		pos += 4
		copy(result[pos:], msg.Value)
		pos += len(msg.Value)
	}

	if msg.Ok {
		flags |= hasOk
	}

	if msg.Err != "" {
		flags |= hasErr
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(msg.Err)))
		pos += 4
		copy(result[pos:], msg.Err)
		pos += len(msg.Err)
	}

	if msg.ErrCode != 0 {
		flags |= hasErrCode
		result[pos] = msg.ErrCode
		pos++
	}

	result[1] = flags
	return result[:pos], nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 2 {
		return fmt.Errorf("binary message too short: %d bytes", len(data))
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	pos := 2

	readBytes := func() ([]byte, error) {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("binary message truncated at offset %d", pos)
		}
		n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+n > len(data) {
			return nil, fmt.Errorf("binary message truncated at offset %d", pos)
		}
		out := data[pos : pos+n]
		pos += n
		return out, nil
	}

	msg.Key = ""
	msg.Value = nil
	msg.Ok = flags&hasOk != 0
	msg.Err = ""
	msg.ErrCode = 0

	if flags&hasKey != 0 {
		key, err := readBytes()
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}

	if flags&hasValue != 0 {
		value, err := readBytes()
		if err != nil {
			return err
		}
		msg.Value = make([]byte, len(value))
		copy(msg.Value, value)
	}

	if flags&hasErr != 0 {
		errMsg, err := readBytes()
		if err != nil {
			return err
		}
		msg.Err = string(errMsg)
	}

	if flags&hasErrCode != 0 {
		if pos >= len(data) {
			return fmt.Errorf("binary message truncated at offset %d", pos)
		}
		msg.ErrCode = data[pos]
		pos++
	}

	return nil
}

// sizeBytes computes the maximum encoded size of a message
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := 2 // MsgType + flags
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if len(msg.Value) > 0 {
		size += 4 + len(msg.Value)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.ErrCode != 0 {
		size++
	}
	return size
}
