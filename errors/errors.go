package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in a call the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // argument inspection, before any engine work
	PhaseMarshal  Phase = "marshal"  // copying input into guest memory
	PhasePayload  Phase = "payload"  // encoded payload pre-validation
	PhaseEngine   Phase = "engine"   // engine invocation
	PhaseEncode   Phase = "encode"   // outgoing result construction
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidArity     Kind = "invalid_arity"
	KindInvalidArgument  Kind = "invalid_argument"
	KindInputTooLarge    Kind = "input_too_large"
	KindAllocation       Kind = "allocation"
	KindMalformedPayload Kind = "malformed_payload"
	KindSyntax           Kind = "syntax"
	KindEngine           Kind = "engine"
	KindEncoding         Kind = "encoding"
)

// NoCursor is the Cursor value for errors without a source location.
const NoCursor int32 = -1

// Error is the structured error type used throughout the library.
// Cursor is a zero-indexed byte position into the original SQL text and is
// meaningful only for KindSyntax; it is NoCursor everywhere else.
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Cursor int32
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

	if e.Kind == KindSyntax && e.Cursor != NoCursor {
		fmt.Fprintf(&b, " at position %d", e.Cursor)
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

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// AsError unwraps err to an *Error if one is in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Convenience constructors for the boundary failure classes

// InvalidArity creates an error for a call with the wrong argument count
func InvalidArity(got int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidArity,
		Detail: fmt.Sprintf("expected 1 argument, got %d", got),
		Cursor: NoCursor,
	}
}

// InvalidArgument creates an error for a non-buffer argument
func InvalidArgument(got any) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidArgument,
		Detail: fmt.Sprintf("argument must be a byte buffer, got %T", got),
		Cursor: NoCursor,
	}
}

// InputTooLarge creates an error for an input exceeding its size ceiling
func InputTooLarge(size, max int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInputTooLarge,
		Detail: fmt.Sprintf("input is %d bytes, limit is %d", size, max),
		Cursor: NoCursor,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint64, cause error) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes in guest memory", size),
		Cursor: NoCursor,
		Cause:  cause,
	}
}

// MalformedPayload creates an error for an encoded payload that failed
// structural validation
func MalformedPayload(cause error) *Error {
	return &Error{
		Phase:  PhasePayload,
		Kind:   KindMalformedPayload,
		Detail: "invalid parse tree payload",
		Cursor: NoCursor,
		Cause:  cause,
	}
}

// Syntax creates a structured engine error with a zero-indexed cursor
func Syntax(message string, cursor int32) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindSyntax,
		Detail: message,
		Cursor: cursor,
	}
}

// Engine creates a plain engine error without a source location
func Engine(message string) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindEngine,
		Detail: message,
		Cursor: NoCursor,
	}
}

// Encoding creates an error for a result that could not be constructed after
// a completed engine call. It indicates a defect in the boundary layer, not
// in the input.
func Encoding(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindEncoding,
		Detail: detail,
		Cursor: NoCursor,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with a phase and kind
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cursor: NoCursor,
		Cause:  cause,
	}
}
