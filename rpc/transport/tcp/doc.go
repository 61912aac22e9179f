// Package tcp implements TCP socket-based transport for the key-value
// store's RPC system. It provides concrete implementations of the base
// package's connector interfaces optimized for TCP connections.
//
// This package builds on the base package's transport functionality,
// inheriting its performance optimizations including connection pooling,
// buffer reuse and request correlation. See the base package documentation
// for detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Accepted and dialed connections are tuned from common.SocketConf
// (TCP_NODELAY, keep-alive, linger, socket buffer sizes). The default server
// read buffer is 512 KB, which works well for typical workloads.
package tcp
