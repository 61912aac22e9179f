// Package client implements the RPC client for the key-value store. It
// provides a typed interface that communicates with remote servers via the
// transport and serialization layers.
//
// The package focuses on:
//   - Transparent RPC access to a remote kiwi-store server
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and dispatch errors
//
// Key Components:
//
//   - NewKVClient: Factory function that creates a client forwarding all
//     operations to remote servers via the configured transport layer.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:5000"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	c, _ := client.NewKVClient(config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//
//	c.Set("mykey", []byte("myvalue"))
//	value, found, _ := c.Get("mykey")
//
// Server-side dispatch failures keep their error code across the wire, so
// callers can use kv.IsBackpressure or kv.CodeOf on returned errors to
// decide whether to retry.
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing
//     ConnectionsPerEndpoint can improve throughput by allowing parallel
//     requests.
//
//   - The choice of serializer significantly affects performance. The binary
//     serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization.
package client
