package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies storage failures. Every error that crosses the service
// boundary carries exactly one kind.
type ErrorKind int

const (
	// KindNotFound indicates the path is absent in the resolved backend.
	KindNotFound ErrorKind = iota + 1

	// KindForbidden indicates a permission or protection check failed.
	KindForbidden

	// KindInUse indicates a delete or move blocked by live usage records.
	KindInUse

	// KindConflict indicates a copy/move destination collision.
	KindConflict

	// KindBackendUnavailable indicates an I/O failure in the bucket or filesystem.
	KindBackendUnavailable

	// KindTimeout indicates a backend call exceeded its deadline.
	KindTimeout

	// KindInvalidInput indicates a malformed path, empty name or illegal character.
	KindInvalidInput

	// KindCanceled indicates a batch item that never started because the
	// caller went away.
	KindCanceled
)

// String returns the wire name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindForbidden:
		return "Forbidden"
	case KindInUse:
		return "InUse"
	case KindConflict:
		return "Conflict"
	case KindBackendUnavailable:
		return "BackendUnavailable"
	case KindTimeout:
		return "Timeout"
	case KindInvalidInput:
		return "InvalidInput"
	case KindCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ErrorKind) UnmarshalText(b []byte) error {
	for c := KindNotFound; c <= KindCanceled; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", string(b))
}

// Error is the error type returned by every storage operation.
type Error struct {
	Kind    ErrorKind
	Message string // human readable, safe to show to API callers
	Path    string
	Err     error // underlying cause, never shown to callers
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		s += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so callers can write
// errors.Is(err, &storage.Error{Kind: storage.KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Path == "" || t.Path == e.Path)
}

// NewError builds an Error of kind k.
func NewError(k ErrorKind, path, format string, args ...any) *Error {
	return &Error{Kind: k, Path: path, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing path.
func NewNotFoundError(path string) *Error {
	return &Error{Kind: KindNotFound, Path: path, Message: fmt.Sprintf("%q not found", path)}
}

// NewForbiddenError reports a denied action.
func NewForbiddenError(path, reason string) *Error {
	return &Error{Kind: KindForbidden, Path: path, Message: reason}
}

// NewInUseError reports a mutation blocked by usage records.
func NewInUseError(path, reason string) *Error {
	return &Error{Kind: KindInUse, Path: path, Message: reason}
}

// NewConflictError reports an existing destination.
func NewConflictError(path string) *Error {
	return &Error{Kind: KindConflict, Path: path, Message: fmt.Sprintf("destination %q already exists", path)}
}

// NewInvalidInputError reports malformed input.
func NewInvalidInputError(path, reason string) *Error {
	return &Error{Kind: KindInvalidInput, Path: path, Message: reason}
}

// NewBackendError wraps a medium failure.
func NewBackendError(path string, err error) *Error {
	return &Error{Kind: KindBackendUnavailable, Path: path, Message: "storage backend unavailable", Err: err}
}

// NewTimeoutError reports an exceeded deadline.
func NewTimeoutError(path string, err error) *Error {
	return &Error{Kind: KindTimeout, Path: path, Message: "storage operation timed out", Err: err}
}

// NewCanceledError reports an item skipped after cancellation.
func NewCanceledError(path string, err error) *Error {
	return &Error{Kind: KindCanceled, Path: path, Message: "operation canceled before it started", Err: err}
}

// AsError returns err as an *Error. Errors that are not storage errors are
// classified: context deadlines become Timeout, cancellations Canceled and
// anything else BackendUnavailable. nil stays nil.
func AsError(path string, err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(path, err)
	case errors.Is(err, context.Canceled):
		return NewCanceledError(path, err)
	default:
		return NewBackendError(path, err)
	}
}

// KindOf returns the kind of err, or 0 when err is nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return 0
	}
	return AsError("", err).Kind
}

// MessageOf returns the caller-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	return AsError("", err).Message
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsInUse(err error) bool        { return KindOf(err) == KindInUse }
func IsConflict(err error) bool     { return KindOf(err) == KindConflict }
func IsTimeout(err error) bool      { return KindOf(err) == KindTimeout }
func IsInvalidInput(err error) bool { return KindOf(err) == KindInvalidInput }

// StorageKind exposes the kind name to packages that cannot import storage,
// such as metrics.
func (e *Error) StorageKind() string {
	return e.Kind.String()
}
