package kv

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/tomkarw/kiwi-store/lib/engine"
	"github.com/tomkarw/kiwi-store/lib/util"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

const defaultQueueCapacity = 64

// Options configures the dispatcher during construction. Lane count and
// queue capacity are fixed for the dispatcher's lifetime; changing them
// means building a new dispatcher.
type Options struct {
	Lanes         int // number of worker lanes (0 = runtime.NumCPU)
	QueueCapacity int // per-lane inbound queue capacity (0 = 64)
}

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher is the concurrent request-dispatch and consistency layer in
// front of a storage engine. It routes every key deterministically to one
// of a fixed set of lanes; operations on the same key are therefore applied
// serially in arrival order, while operations on independent keys proceed
// in parallel across lanes. The engine below only has to provide single-key
// atomicity.
type Dispatcher struct {
	engine engine.KVEngine
	seed   uint64
	lanes  []*lane

	mu     sync.RWMutex // guards closed vs. in-flight submissions
	closed bool
	wg     sync.WaitGroup

	flushMu  sync.Mutex
	flushErr error
}

// NewDispatcher creates a dispatcher over the given engine and starts its
// worker lanes. The engine is shared across all lanes and must be safe for
// concurrent calls on distinct keys.
func NewDispatcher(eng engine.KVEngine, opts *Options) *Dispatcher {
	if opts == nil {
		opts = &Options{}
	}
	lanes := opts.Lanes
	if lanes < 1 {
		lanes = runtime.NumCPU()
	}
	capacity := opts.QueueCapacity
	if capacity < 1 {
		capacity = defaultQueueCapacity
	}

	d := &Dispatcher{
		engine: eng,
		seed:   util.GenerateSeed(),
		lanes:  make([]*lane, lanes),
	}

	for i := range d.lanes {
		d.lanes[i] = newLane(i, capacity)
		d.wg.Add(1)
		go d.runLane(d.lanes[i])
	}

	return d
}

// laneOf deterministically maps a key to a lane index. Pure over the key
// bytes and the dispatcher's seed; stable for the dispatcher's lifetime.
func (d *Dispatcher) laneOf(key string) int {
	return int(util.HashString(key, d.seed) % uint64(len(d.lanes)))
}

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

// Submit routes an operation to its lane and enqueues it without blocking.
// It returns a one-shot Handle the caller awaits for the result.
//
// Failure modes, all before anything is enqueued: ErrCPoolClosed once
// shutdown has begun, ErrCPoolDegraded if the key's lane has terminated,
// and ErrCBackpressure if the lane's queue is full - the caller should
// retry with backoff. Submission either fully succeeds or fully fails;
// operations are never silently dropped.
func (d *Dispatcher) Submit(op Operation) (*Handle, error) {
	l := d.lanes[d.laneOf(op.Key)]

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, NewError(ErrCPoolClosed, "dispatcher is shut down")
	}
	if l.degraded.Load() {
		return nil, NewError(ErrCPoolDegraded, fmt.Sprintf("lane %d has terminated", l.id))
	}

	h := newHandle()
	select {
	case l.inbox <- task{op: op, handle: h}:
		return h, nil
	default:
		return nil, NewError(ErrCBackpressure, fmt.Sprintf("lane %d queue is full", l.id))
	}
}

// --------------------------------------------------------------------------
// Awaiting convenience wrappers
// --------------------------------------------------------------------------

// Get submits a read for key and awaits the result.
func (d *Dispatcher) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	h, err := d.Submit(Operation{Type: OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	res, err := h.Await(ctx)
	return res.Value, res.Found, err
}

// Set submits a write for key and awaits its completion.
func (d *Dispatcher) Set(ctx context.Context, key string, value []byte) error {
	h, err := d.Submit(Operation{Type: OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	_, err = h.Await(ctx)
	return err
}

// Remove submits a removal for key and awaits the result. The boolean
// reports whether the key existed prior to removal.
func (d *Dispatcher) Remove(ctx context.Context, key string) (found bool, err error) {
	h, err := d.Submit(Operation{Type: OpRemove, Key: key})
	if err != nil {
		return false, err
	}
	res, err := h.Await(ctx)
	return res.Found, err
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Shutdown stops the dispatcher cooperatively: new submissions are
// rejected, every lane drains the operations already enqueued (in-flight
// work is never discarded), flushes the engine, and stops. Shutdown returns
// once all lanes have stopped, or with ctx's error if that takes too long.
// It is idempotent.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l.inbox)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.flushMu.Lock()
		defer d.flushMu.Unlock()
		return d.flushErr
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown interrupted: %w", ctx.Err())
	}
}

// recordFlushErr keeps the first flush failure seen during shutdown
func (d *Dispatcher) recordFlushErr(err error) {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()
	if d.flushErr == nil {
		d.flushErr = &Error{Code: ErrCStorage, Msg: "flush on shutdown failed", Err: err}
	}
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// Lanes returns the fixed number of worker lanes.
func (d *Dispatcher) Lanes() int {
	return len(d.lanes)
}

// DegradedLanes returns how many lanes have terminated unexpectedly.
func (d *Dispatcher) DegradedLanes() int {
	n := 0
	for _, l := range d.lanes {
		if l.degraded.Load() {
			n++
		}
	}
	return n
}

// Exhausted reports whether every lane has terminated. This is the only
// process-fatal condition of the pool and should be surfaced by the service
// front end as a whole-service error.
func (d *Dispatcher) Exhausted() bool {
	return d.DegradedLanes() == len(d.lanes)
}
