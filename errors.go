// errors.go: the bridge error taxonomy.
//
// Every recoverable failure in this package is reported as a *Error carrying
// a Code, the operation that failed, and a message. Codes are matchable with
// errors.Is against the exported sentinels, so callers can branch on the
// failure class without string inspection:
//
//	v, err := embedr.WrapVector(s, h, false)
//	if errors.Is(err, embedr.ErrTypeMismatch) { ... }
//
// The taxonomy is closed: InvalidHandle, TypeMismatch, IndexOutOfRange,
// ListFull, NameNotFound, AllocationFailed, Evaluation, DoubleRelease.
// Nothing in this package returns an untyped error.
package embedr

import "fmt"

// Code classifies a bridge failure.
type Code int

const (
	// CodeInvalidHandle: the foreign nil sentinel (or a zero handle) arrived
	// where a live object was required.
	CodeInvalidHandle Code = iota + 1
	// CodeTypeMismatch: a wrap-time predicate check failed; the handle does
	// not have the shape the view requires.
	CodeTypeMismatch
	// CodeIndexOutOfRange: bounds violation on vector/matrix/list access.
	CodeIndexOutOfRange
	// CodeListFull: append on a list whose fill pointer reached capacity.
	CodeListFull
	// CodeNameNotFound: named list lookup found no entry.
	CodeNameNotFound
	// CodeAllocationFailed: the foreign heap or protection table is exhausted.
	CodeAllocationFailed
	// CodeEvaluation: a foreign-level error was raised during evaluation.
	CodeEvaluation
	// CodeDoubleRelease: a guard was released past zero (debug checks only).
	CodeDoubleRelease
)

func (c Code) String() string {
	switch c {
	case CodeInvalidHandle:
		return "invalid handle"
	case CodeTypeMismatch:
		return "type mismatch"
	case CodeIndexOutOfRange:
		return "index out of range"
	case CodeListFull:
		return "list full"
	case CodeNameNotFound:
		return "name not found"
	case CodeAllocationFailed:
		return "allocation failed"
	case CodeEvaluation:
		return "evaluation error"
	case CodeDoubleRelease:
		return "double release"
	default:
		return "unknown"
	}
}

// Error is the structured error type for every failure the bridge reports.
// Op names the operation ("WrapVector", "List.Append", ...). Msg carries the
// detail; for CodeEvaluation it is the foreign runtime's own error message.
type Error struct {
	Code Code
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		if e.Msg == "" {
			return e.Code.String()
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
}

// Is matches on Code so errors.Is(err, ErrTypeMismatch) works regardless of
// Op/Msg detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is matching. Never returned directly; every real
// failure carries Op and Msg.
var (
	ErrInvalidHandle    = &Error{Code: CodeInvalidHandle}
	ErrTypeMismatch     = &Error{Code: CodeTypeMismatch}
	ErrIndexOutOfRange  = &Error{Code: CodeIndexOutOfRange}
	ErrListFull         = &Error{Code: CodeListFull}
	ErrNameNotFound     = &Error{Code: CodeNameNotFound}
	ErrAllocationFailed = &Error{Code: CodeAllocationFailed}
	ErrEvaluation       = &Error{Code: CodeEvaluation}
	ErrDoubleRelease    = &Error{Code: CodeDoubleRelease}
)

func errf(c Code, op, format string, args ...any) *Error {
	return &Error{Code: c, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// RaisedError is the panic payload used by Runtime.RaiseError. It unwinds
// only as far as the runtime's own evaluation machinery, which catches it
// and reports an ordinary foreign-level error; it must never escape an Eval
// call. Boundary wrappers recognize it and let it pass through untouched.
type RaisedError struct {
	Msg string
}

func (e *RaisedError) Error() string { return e.Msg }
