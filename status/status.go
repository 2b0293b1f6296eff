// Package status defines the shared error taxonomy used across the ring,
// capture, and memory-space packages.
//
// Every blocking or fallible operation in this repository returns a kind
// from this package rather than an ad-hoc error string, so callers can
// distinguish backpressure from a genuine failure with errors.Is.
package status

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure behind an Error.
type Kind int

const (
	// OK is never returned as an error; it exists so the zero Kind is
	// not confused with a real failure.
	OK Kind = iota
	InvalidArgument
	InvalidState
	InvalidSpace
	InvalidShape
	InvalidDType
	WouldBlock
	EndOfData
	Timeout
	NoData
	Interrupted
	Overrun
	InsufficientStorage
	Unsupported
	Internal
)

// Error implements the error interface on Kind itself so that bare kinds
// can be used as errors.Is targets: errors.Is(err, status.Overrun).
func (k Kind) Error() string {
	return k.String()
}

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case InvalidArgument:
		return "invalid_argument"
	case InvalidState:
		return "invalid_state"
	case InvalidSpace:
		return "invalid_space"
	case InvalidShape:
		return "invalid_shape"
	case InvalidDType:
		return "invalid_dtype"
	case WouldBlock:
		return "would_block"
	case EndOfData:
		return "end_of_data"
	case Timeout:
		return "timeout"
	case NoData:
		return "no_data"
	case Interrupted:
		return "interrupted"
	case Overrun:
		return "overrun"
	case InsufficientStorage:
		return "insufficient_storage"
	case Unsupported:
		return "unsupported"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the concrete error type returned by every public API in this
// repository. Op names the failing operation (e.g. "ring.Reserve") so logs
// and test failures can locate the call site without a stack trace.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, status.Overrun) style comparisons by treating a
// bare Kind as a wildcard Error with that Kind.
func (e *Error) Is(target error) bool {
	switch other := target.(type) {
	case *Error:
		return e.Kind == other.Kind
	case Kind:
		return e.Kind == other
	default:
		return false
	}
}

// New constructs an *Error for the given operation and kind, optionally
// wrapping a lower-level cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Newf constructs an *Error with a formatted cause.
func Newf(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, returning Internal if err is not (or
// does not wrap) a *status.Error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return Internal
}
