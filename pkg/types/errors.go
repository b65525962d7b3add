package types

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrorKind classifies failures. Parse, dispatch, conversion and state
// errors abort execution; resource errors are logged by the resource layer
// and never reach the caller as failures.
type ErrorKind int

const (
	ParseError ErrorKind = iota + 1
	DispatchError
	ConversionError
	ResourceError
	StateError
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ParseError:
		return "ParseError"
	case DispatchError:
		return "DispatchError"
	case ConversionError:
		return "ConversionError"
	case ResourceError:
		return "ResourceError"
	case StateError:
		return "StateError"
	default:
		return "Error"
	}
}

// Error is the typed error returned by the engine.
type Error struct {
	Kind    ErrorKind
	Message string
	// Name is the function, type or key the error is about, if any.
	Name string
	// Source is the offending source text, if any.
	Source string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String() + ": " + e.Message
	if e.Source != "" {
		msg += fmt.Sprintf(" (in %q)", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: ParseError}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// LogValue implements slog.LogValuer.
func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", e.Kind.String()),
		slog.String("message", e.Message),
	}
	if e.Name != "" {
		attrs = append(attrs, slog.String("name", e.Name))
	}
	if e.Source != "" {
		attrs = append(attrs, slog.String("source", e.Source))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// ToValue converts the error to a map value with kind, message and name keys.
func (e *Error) ToValue() Value {
	m := NewOrderedMap()
	m.Set("kind", NewString(e.Kind.String()))
	m.Set("message", NewString(e.Message))
	if e.Name != "" {
		m.Set("name", NewString(e.Name))
	}
	if e.Source != "" {
		m.Set("source", NewString(e.Source))
	}
	return NewMap(m)
}

// KindOf returns the kind of err if it wraps an *Error, else zero.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// NewParseError creates a ParseError for the given source text.
func NewParseError(source, msg string) *Error {
	return &Error{Kind: ParseError, Message: msg, Source: source}
}

// NewDispatchError creates a DispatchError about the named function or member.
func NewDispatchError(name, msg string) *Error {
	return &Error{Kind: DispatchError, Message: msg, Name: name}
}

// NewConversionError creates a ConversionError towards the named kind.
func NewConversionError(kind, msg string) *Error {
	return &Error{Kind: ConversionError, Message: msg, Name: kind}
}

// NewResourceError creates a ResourceError about the given URI.
func NewResourceError(uri string, err error) *Error {
	return &Error{Kind: ResourceError, Message: "resource operation failed", Name: uri, Err: err}
}

// NewStateError creates a StateError.
func NewStateError(msg string) *Error {
	return &Error{Kind: StateError, Message: msg}
}

// ExitError is returned by the exit builtin. Hosts decide whether it
// terminates the process.
type ExitError struct {
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit requested with status %d", e.Code)
}
