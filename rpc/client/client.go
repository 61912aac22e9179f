package client

import (
	"fmt"

	"github.com/tomkarw/kiwi-store/lib/kv"
	"github.com/tomkarw/kiwi-store/rpc/common"
	"github.com/tomkarw/kiwi-store/rpc/serializer"
	"github.com/tomkarw/kiwi-store/rpc/transport"
)

// IKVClient is the client-side view of a kiwi-store server
type IKVClient interface {
	// Set stores a value under a key, overwriting any previous value
	Set(key string, value []byte) error

	// Get returns the value stored under a key and whether the key existed
	Get(key string) (value []byte, found bool, err error)

	// Remove deletes a key and reports whether it existed
	Remove(key string) (found bool, err error)

	// Close closes the underlying transport
	Close() error
}

// NewKVClient creates a new RPC client.
// The function takes a config, a transport and a serializer as parameters.
func NewKVClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IKVClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &kvClient{
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

type kvClient struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IKVClient)
// --------------------------------------------------------------------------

func (c *kvClient) Set(key string, value []byte) error {
	req := common.NewSetRequest(key, value)
	_, err := c.invoke(req)
	return err
}

func (c *kvClient) Get(key string) (value []byte, found bool, err error) {
	req := common.NewGetRequest(key)
	resp, err := c.invoke(req)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (c *kvClient) Remove(key string) (found bool, err error) {
	req := common.NewRemoveRequest(key)
	resp, err := c.invoke(req)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (c *kvClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke sends a request and validates the response. Error responses that
// carry a dispatch error code are rebuilt as kv errors so callers can use
// kv.IsBackpressure and friends on the client side.
func (c *kvClient) invoke(req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := c.transport.Send(reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := c.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %s", err)
	}

	// Check if the response is an error response
	if resp.Err != "" {
		if resp.ErrCode != 0 {
			return nil, kv.NewError(kv.ErrCode(resp.ErrCode), resp.Err)
		}
		return nil, fmt.Errorf("server error: %s", resp.Err)
	}
	if resp.MsgType == common.MsgTError {
		return nil, fmt.Errorf("server error")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
