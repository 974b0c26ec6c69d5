package clone

import (
	"errors"
	"fmt"
	"strings"

	"ilclone/internal/multiplex"
)

// Error kinds. Every error returned by a Context wraps exactly one of them,
// so callers can branch with errors.Is.
var (
	// ErrUnsupported reports a source shape the engine cannot clone.
	ErrUnsupported = errors.New("unsupported source shape")
	// ErrInvalidOperation reports a request that cannot be carried out, such
	// as a root type with a parameterized instance constructor.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrBrokenReference reports a reference that cannot be resolved from the
	// target module.
	ErrBrokenReference = errors.New("broken reference")
	// ErrMissingBoundary reports a constructor without a base or chained
	// constructor call.
	ErrMissingBoundary = multiplex.ErrMissingBoundary
	// ErrDispatchGap reports an element kind no cloner handles.
	ErrDispatchGap = errors.New("no cloner for element")
)

// Error is a failure tied to one element of the operation.
type Error struct {
	// Element is the qualified name of the offending element.
	Element string
	// Detail describes the failure.
	Detail string

	kind  error
	cause error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(e.kind.Error())

	if e.Element != "" {
		b.WriteString(": ")
		b.WriteString(e.Element)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}

	return b.String()
}

// Unwrap exposes both the error kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}

	return []error{e.kind, e.cause}
}

func fail(kind error, element fmt.Stringer, format string, args ...any) *Error {
	return &Error{Element: nameOf(element), Detail: fmt.Sprintf(format, args...), kind: kind}
}

func wrap(kind error, element fmt.Stringer, cause error) *Error {
	var e *Error
	if errors.As(cause, &e) {
		return e
	}

	return &Error{Element: nameOf(element), kind: kind, cause: cause}
}

func nameOf(el fmt.Stringer) string {
	if el == nil {
		return ""
	}

	return el.String()
}
