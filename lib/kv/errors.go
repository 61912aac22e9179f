package kv

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint8

const (
	// ErrCStorage: the underlying engine could not complete a
	// read/write/durability operation. Reported only to the caller whose
	// operation failed; never terminates a lane.
	ErrCStorage ErrCode = iota + 1
	// ErrCBackpressure: the target lane's queue was full at submission
	// time. The operation was not enqueued; the caller may retry with
	// backoff.
	ErrCBackpressure
	// ErrCPoolDegraded: the target lane's worker has terminated. Keys
	// routed to it can no longer be served with ordering guarantees.
	ErrCPoolDegraded
	// ErrCPoolClosed: the dispatcher is shutting down or already stopped;
	// the operation was not enqueued.
	ErrCPoolClosed
	// ErrCCancelled: the caller stopped awaiting its result. Observational
	// only - the operation itself was or will still be applied.
	ErrCCancelled
	// ErrCInvalidOp: the operation carried an unknown type.
	ErrCInvalidOp
)

func (c ErrCode) String() string {
	switch c {
	case ErrCStorage:
		return "StorageFailure"
	case ErrCBackpressure:
		return "Backpressure"
	case ErrCPoolDegraded:
		return "PoolDegraded"
	case ErrCPoolClosed:
		return "PoolClosed"
	case ErrCCancelled:
		return "Cancelled"
	case ErrCInvalidOp:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type for all dispatch failures. It wraps an ErrCode
// plus an optional underlying cause (engine errors for ErrCStorage,
// ctx.Err() for ErrCCancelled).
type Error struct {
	Code ErrCode
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kv: %s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("kv: %s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// CodeOf returns the ErrCode carried by err, or 0 if err is not a dispatch
// error.
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsBackpressure reports whether err is a fail-fast queue-full rejection.
func IsBackpressure(err error) bool { return CodeOf(err) == ErrCBackpressure }

// IsCancelled reports whether err means the caller abandoned its await.
func IsCancelled(err error) bool { return CodeOf(err) == ErrCCancelled }
