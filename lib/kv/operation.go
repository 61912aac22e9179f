package kv

import "context"

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

type OpType uint8

const (
	OpGet OpType = iota + 1
	OpSet
	OpRemove
)

func (t OpType) String() string {
	switch t {
	case OpGet:
		return "Get"
	case OpSet:
		return "Set"
	case OpRemove:
		return "Remove"
	default:
		return "Unknown"
	}
}

// Operation is a tagged request against the store. Value is only meaningful
// for OpSet.
type Operation struct {
	Type  OpType
	Key   string
	Value []byte
}

// Result is the success payload of a completed operation. Value and Found
// are only meaningful for OpGet (Value, Found) and OpRemove (Found).
type Result struct {
	Value []byte
	Found bool
}

// --------------------------------------------------------------------------
// Completion Handle
// --------------------------------------------------------------------------

// outcome pairs a result with its error for one-shot delivery
type outcome struct {
	res Result
	err error
}

// Handle is the one-shot completion handle of a submitted operation:
// written exactly once by the lane that processed the operation, read by
// the submitting caller via Await. A caller that stops awaiting does not
// abort the operation - the lane's buffered send always succeeds and the
// result is simply discarded.
type Handle struct {
	ch chan outcome
}

func newHandle() *Handle {
	return &Handle{ch: make(chan outcome, 1)}
}

// complete fulfills the handle. Must be called exactly once.
func (h *Handle) complete(res Result, err error) {
	h.ch <- outcome{res: res, err: err}
}

// Await blocks until the operation has been processed or ctx is done.
// A ctx expiry yields an ErrCCancelled error; the operation itself still
// completes against storage.
func (h *Handle) Await(ctx context.Context) (Result, error) {
	select {
	case o := <-h.ch:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, &Error{
			Code: ErrCCancelled,
			Msg:  "caller stopped awaiting, operation still applies",
			Err:  ctx.Err(),
		}
	}
}
