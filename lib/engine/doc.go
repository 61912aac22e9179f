// Package engine defines the storage engine contract of kiwi-store and the
// ownership rules for on-disk data directories.
//
// Three implementations live in the sub-packages:
//
//   - kiwi: the native log-structured engine (append-only record log with
//     an in-memory index and background-free, threshold-driven compaction)
//   - bolt: a durable engine backed by bbolt
//   - memory: a volatile sharded in-memory engine, mainly for tests and
//     benchmarks
//
// All engines guarantee single-key atomicity and safe concurrent access
// from independent goroutines. None of them provide multi-key transactions
// or ordering across calls - that is deliberately the job of the dispatch
// layer in lib/kv.
package engine
