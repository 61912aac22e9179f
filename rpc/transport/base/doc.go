// Package base provides a foundation for transport layers in the key-value
// store, implementing core functionality for RPC communication independent of
// the specific network protocol (TCP, Unix sockets). It serves as a base
// layer that is extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Performance optimization through connection pooling and buffer reuse
//   - Frame-based message protocol with requestID tracking
//   - Automatic response correlation on shared connections
//   - Robust error handling with retries and reconnection logic
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific
//     operations that allow extending the base transport with different
//     network protocols.
//
//   - clientTransport: Core client implementation that manages multiple
//     connections with round-robin load balancing. Supports multiple
//     connections per endpoint for improved throughput.
//
//   - serverTransport: Core server implementation that accepts connections,
//     reads request frames and routes them to the registered handler with a
//     bounded number of workers per connection.
//
// Performance Optimizations:
//
//   - Connection Pooling: Multiple connections per endpoint improve throughput
//     for high-load scenarios, particularly for large messages where a single
//     connection saturates.
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse read buffers,
//     reducing GC pressure and memory allocations.
//
//   - Asynchronous Processing: The client sends requests and correlates
//     responses asynchronously using unique request IDs, so many requests can
//     be in flight on one connection.
//
//   - Frame Batching: The transport uses net.Buffers to combine header and
//     payload into a single write, reducing syscalls.
//
// Thread Safety:
//
//	All public methods are thread-safe. The client transport uses atomic
//	operations and mutexes to ensure concurrent access safety, while the
//	server creates a dedicated goroutine for each connection.
package base
