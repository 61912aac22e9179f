// Package memory implements a volatile in-memory engine. Keys are
// distributed over per-CPU shards using a seeded hash, each shard backed by
// a concurrent map. Flush is a no-op; nothing survives a restart.
package memory
