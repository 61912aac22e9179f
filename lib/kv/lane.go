package kv

import (
	"fmt"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Lane (one serial execution context of the worker pool)
// --------------------------------------------------------------------------

// task couples an operation with its completion handle on the lane queue
type task struct {
	op     Operation
	handle *Handle
}

type laneState int32

const (
	laneIdle laneState = iota
	laneProcessing
	laneStopped
)

// lane owns one bounded inbound channel and one worker goroutine. The
// goroutine is the channel's only receiver; no lane ever touches another
// lane's channel. Lifetime is dispatcher lifetime: created at construction,
// stopped by closing the inbox during shutdown.
type lane struct {
	id       int
	inbox    chan task
	degraded atomic.Bool
	state    atomic.Int32
}

func newLane(id, capacity int) *lane {
	return &lane{
		id:    id,
		inbox: make(chan task, capacity),
	}
}

func (l *lane) setState(s laneState) { l.state.Store(int32(s)) }
func (l *lane) getState() laneState  { return laneState(l.state.Load()) }

// runLane is the serial loop of a single lane: block on the inbox, apply
// the next operation against the engine, fulfill its handle, repeat. A
// storage failure is reported to that operation's handle only and the loop
// continues. A panic out of the engine terminates the lane for good.
//
// When the inbox is closed the lane drains everything already enqueued,
// flushes the engine once, and stops.
func (d *Dispatcher) runLane(l *lane) {
	defer d.wg.Done()
	defer l.setState(laneStopped)

	for t := range l.inbox {
		l.setState(laneProcessing)
		if !d.process(l, t) {
			// The worker hit an unrecoverable fault. The lane is already
			// marked degraded so the dispatcher refuses new submissions
			// for its keys; the drainer fails everything already queued
			// or racing in - no handle is ever left unfulfilled.
			go l.failPending()
			return
		}
		l.setState(laneIdle)
	}

	if err := d.engine.Flush(); err != nil {
		d.recordFlushErr(err)
	}
}

// process applies one operation and fulfills its handle. It reports false
// if the engine panicked, in which case the handle has been failed with
// ErrCPoolDegraded.
func (d *Dispatcher) process(l *lane, t task) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			// Mark the lane dead before fulfilling the handle, so a caller
			// that observes the failure can never race a new submission
			// past the degraded check.
			l.degraded.Store(true)
			t.handle.complete(Result{}, &Error{
				Code: ErrCPoolDegraded,
				Msg:  fmt.Sprintf("lane %d worker terminated: %v", l.id, r),
			})
			ok = false
		}
	}()

	res, err := d.apply(t.op)
	t.handle.complete(res, err)
	return true
}

// apply executes one operation against the storage engine
func (d *Dispatcher) apply(op Operation) (Result, error) {
	switch op.Type {
	case OpGet:
		value, found := d.engine.Get(op.Key)
		return Result{Value: value, Found: found}, nil
	case OpSet:
		if err := d.engine.Set(op.Key, op.Value); err != nil {
			return Result{}, &Error{Code: ErrCStorage, Msg: "set failed", Err: err}
		}
		return Result{}, nil
	case OpRemove:
		found, err := d.engine.Remove(op.Key)
		if err != nil {
			return Result{}, &Error{Code: ErrCStorage, Msg: "remove failed", Err: err}
		}
		return Result{Found: found}, nil
	default:
		return Result{}, NewError(ErrCInvalidOp, fmt.Sprintf("unknown operation type %d", op.Type))
	}
}

// failPending rejects queued and late-racing tasks of a degraded lane until
// the inbox is closed by shutdown.
func (l *lane) failPending() {
	for t := range l.inbox {
		t.handle.complete(Result{}, NewError(
			ErrCPoolDegraded,
			fmt.Sprintf("lane %d worker terminated, operation dropped", l.id),
		))
	}
}
