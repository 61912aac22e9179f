// Package cmd implements the command-line interface for the kiwi-store
// key-value server. It provides a hierarchical command structure with
// operations for running the server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value operations (set, get, rm) and a perf tool
//   - serve: Commands for starting and configuring the kiwi-store server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See kiwi -help for a list of all commands.
package cmd
