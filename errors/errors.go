package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLifecycle Phase = "lifecycle" // group construction and disposal
	PhaseDispatch  Phase = "dispatch"  // task scheduling and draining
	PhaseSnapshot  Phase = "snapshot"  // startup-data loading
	PhaseBinding   Phase = "binding"   // host-callback delivery
	PhaseEngine    Phase = "engine"    // engine instance operations
)

// Kind categorizes the error
type Kind string

const (
	KindDefunct           Kind = "defunct"
	KindOwningThread      Kind = "owning_thread"
	KindClosed            Kind = "closed"
	KindNotFound          Kind = "not_found"
	KindInvalidInput      Kind = "invalid_input"
	KindIO                Kind = "io"
	KindAlreadyRegistered Kind = "already_registered"
)

// Error is the structured error type used throughout the module
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. Two Errors match when their
// Phase and Kind agree, so callers can test against a bare constructor result.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Convenience constructors for common error patterns

// Defunct reports an operation attempted on a group that has been disposed
func Defunct(detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindDefunct,
		Detail: detail,
	}
}

// OwningThread reports a blocking call issued from the owning goroutine itself
func OwningThread(detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindOwningThread,
		Detail: detail,
	}
}

// Closed reports use of a platform that has already shut down
func Closed(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// AlreadyRegistered reports a second registration for the same engine instance
func AlreadyRegistered(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyRegistered,
		Detail: detail,
	}
}

// IO wraps a file or stream failure
func IO(phase Phase, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindIO,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
