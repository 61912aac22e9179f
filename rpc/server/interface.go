package server

import (
	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters.
// It is responsible for translating protocol messages into dispatcher
// operations and their results back into messages.
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response.
	// If an error occurs, it is set in the response.
	Handle(req *common.Message, dispatcher *kv.Dispatcher) (resp *common.Message)
}
