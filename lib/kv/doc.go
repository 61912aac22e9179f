// Package kv implements the request-dispatch and consistency layer that
// sits between the RPC front end and a storage engine.
//
// The problem it solves: many clients issue Get/Set/Remove operations
// concurrently, and operations on the same key must never be applied out of
// the order in which they were accepted, while operations on independent
// keys should proceed in parallel on a bounded number of workers.
//
// The construction is structural rather than lock-based. A pure hash maps
// every key to one of N lanes; each lane is a single goroutine serially
// draining a bounded channel and applying operations against the shared
// engine. Same-key operations always land on the same lane and are thus
// FIFO by construction - no per-key locks, no lock bookkeeping, no deadlock
// risk. Different keys on different lanes carry no relative ordering
// guarantee; that is intentional parallelism.
//
// Submission is non-blocking and fail-fast: a full lane queue yields an
// ErrCBackpressure error instead of unbounded buffering, bounding memory
// and giving callers an explicit retry signal. Each submitted operation
// returns a one-shot Handle; awaiting it suspends the caller without ever
// occupying a lane, and abandoning it (caller timeout) only discards the
// notification - the operation still applies.
//
// A storage failure affects exactly the operation that hit it. A panic out
// of the engine permanently degrades that one lane: its keys are refused
// with ErrCPoolDegraded while the remaining lanes keep working. Lanes are
// never restarted mid-life, because a replacement could not re-establish
// the ordering already promised for that lane's keys.
//
// Shutdown is cooperative: lane inboxes are closed, every lane drains what
// was already accepted, flushes the engine, and stops; Shutdown returns
// when all lanes have stopped.
package kv
