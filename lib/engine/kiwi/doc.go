// Package kiwi implements the native log-structured storage engine.
//
// All writes are appended to a single log file as CRC-checked binary
// records; an in-memory index maps each key to the offset of its latest
// value. Reads go straight to the log via ReadAt, so concurrent reads on
// distinct keys never contend on anything but a shared read lock.
//
// The log only ever grows through appends. Once the fraction of superseded
// bytes (overwritten values and tombstones) crosses a configurable
// threshold, the engine rewrites all live records into a fresh log and
// atomically swaps it in place. Compaction happens inline under the write
// lock - there is no background goroutine to coordinate with during
// shutdown.
//
// On open the full log is replayed to rebuild the index. A torn write at
// the tail (crash mid-append) is detected by CRC and truncated away;
// corruption anywhere else fails the open.
//
// Durability: with SyncWrites every record is fsynced as it is written.
// Otherwise records are durable after Flush, which the dispatch layer calls
// on graceful shutdown.
package kiwi
