package transport

import (
	"github.com/tomkarw/kiwi-store/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests.
// It is called by a server transport layer whenever a request frame is
// received and returns the serialized response.
type ServerHandleFunc func(req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC
// transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer.
	// Must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)

	// Listen starts the transport layer and blocks, serving incoming
	// requests until Close is called
	Listen(config common.ServerConfig) error

	// Close stops the listener, closes all active connections and waits
	// for in-flight requests to finish
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error

	// Send sends a request to a server and returns the response
	Send(req []byte) (resp []byte, err error)

	// Close closes the transport connection
	Close() error
}
