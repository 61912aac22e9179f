// Package server implements the RPC server for the key-value store. It wires
// a storage engine, the request dispatcher and a transport layer together
// into a runnable server.
//
// The package focuses on:
//   - Server-side RPC request handling for key-value operations
//   - Adapter pattern to decouple dispatch logic from RPC mechanisms
//   - Engine selection (kiwi, bolt or memory) from configuration
//   - Graceful shutdown that drains all lanes and flushes the engine
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters,
//     with the Handle method that processes incoming requests against the
//     dispatcher.
//
//   - NewKVServerAdapter: Factory function creating the adapter that
//     translates protocol messages into dispatcher operations.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Endpoint:      "0.0.0.0:8080",
//	  Engine:        "kiwi",
//	  DataDir:       "/var/lib/kiwi",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(config),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("server error: %v", err)
//	}
//
// Serve blocks until Shutdown is called or SIGINT/SIGTERM arrives. Shutdown
// stops the transport first, then drains the dispatcher (each lane flushes
// the engine) and finally closes the engine, so acknowledged writes are
// durable before the process exits.
//
// If MetricsEndpoint is set, the server additionally exposes Prometheus
// metrics under /metrics and pprof under /debug/pprof on that address.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent
//	requests across multiple connections. Each request is processed
//	independently. The Serve method should be called only once.
package server
