// Package fault defines the kernel's typed failure taxonomy. Every kernel
// operation reports failure as an error carrying one of these codes; no
// panic crosses a package boundary.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a kernel failure.
type Code string

const (
	// CodeValidation indicates a malformed or unknown event.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeSessionNotLoaded indicates the authority holds no state for the session.
	CodeSessionNotLoaded Code = "SESSION_NOT_LOADED"

	// CodeNotFound indicates a missing character, location, technique or item.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInsufficientResource indicates a Qi or fatigue threshold was not met.
	CodeInsufficientResource Code = "INSUFFICIENT_RESOURCE"

	// CodeInvalidTransition indicates a state change the rules forbid.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeStorageFailure indicates a durable read or write failed.
	CodeStorageFailure Code = "STORAGE_FAILURE"

	// CodeInternal indicates a kernel bug.
	CodeInternal Code = "INTERNAL"
)

// Error is a kernel failure with a code and the operation that produced it.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error. A nil err returns nil.
func Wrap(code Code, op string, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// Message returns the human-readable part of a kernel error without the
// code prefix.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Err != nil {
			return fmt.Sprintf("%s: %v", fe.Message, fe.Err)
		}
		return fe.Message
	}
	return err.Error()
}

// NotFound is shorthand for a CodeNotFound error.
func NotFound(op, what, id string) *Error {
	return New(CodeNotFound, op, "%s %q not found", what, id)
}

// SessionNotLoaded is shorthand for a CodeSessionNotLoaded error.
func SessionNotLoaded(op, sessionID string) *Error {
	return New(CodeSessionNotLoaded, op, "session %q is not loaded", sessionID)
}
