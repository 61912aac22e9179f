package server

import (
	"context"
	"fmt"

	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/common"
)

// NewKVServerAdapter creates the adapter translating key-value protocol
// messages into dispatcher operations
func NewKVServerAdapter() IRPCServerAdapter {
	return &kvServerAdapterImpl{}
}

type kvServerAdapterImpl struct{}

func (adapter *kvServerAdapterImpl) Handle(req *common.Message, dispatcher *kv.Dispatcher) *common.Message {
	// Check for nil dispatcher
	if dispatcher == nil {
		return common.NewErrorResponse("handler: dispatcher is nil")
	}

	ctx := context.Background()

	// Handle different message types
	switch req.MsgType {
	case common.MsgTKVSet:
		err := dispatcher.Set(ctx, req.Key, req.Value)
		return withErrCode(common.NewSetResponse(err), err)
	case common.MsgTKVGet:
		val, found, err := dispatcher.Get(ctx, req.Key)
		return withErrCode(common.NewGetResponse(val, found, err), err)
	case common.MsgTKVRemove:
		found, err := dispatcher.Remove(ctx, req.Key)
		return withErrCode(common.NewRemoveResponse(found, err), err)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("unsupported message type: %s", req.MsgType),
		)
	}
}

// withErrCode copies the dispatch error code into the response so clients
// can distinguish retryable failures (backpressure) from fatal ones
func withErrCode(msg *common.Message, err error) *common.Message {
	if err != nil {
		msg.ErrCode = uint8(kv.CodeOf(err))
	}
	return msg
}
