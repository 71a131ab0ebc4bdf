// Package apperr defines the typed errors returned by the event, resource and registration services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindInsufficientResource Kind = "insufficient_resource"
	KindPreconditionFailed   Kind = "precondition_failed"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindForbidden            Kind = "forbidden"
	KindStoreUnavailable     Kind = "store_unavailable"
)

// Sentinels for errors.Is checks against a kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrInsufficientResource = &Error{Kind: KindInsufficientResource}
	ErrPreconditionFailed   = &Error{Kind: KindPreconditionFailed}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrForbidden            = &Error{Kind: KindForbidden}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable}
)

// Error is an application error with a kind and a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works on wrapped errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Validation reports bad caller input, rejected before any store write.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// InsufficientResource reports a request for more units than the pool holds.
func InsufficientResource(name string, available, requested int) error {
	return &Error{
		Kind:    KindInsufficientResource,
		Message: fmt.Sprintf("only %d %s available (requested %d)", available, name, requested),
	}
}

// PreconditionFailed reports a state that blocks the operation.
func PreconditionFailed(format string, args ...any) error {
	return &Error{Kind: KindPreconditionFailed, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing record, e.g. NotFound("event", id).
func NotFound(entity string, id any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// Conflict reports a uniqueness clash such as a double-booked venue.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports an authenticated caller acting on something they do not own.
func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// StoreUnavailable wraps an infrastructure failure. It is the only kind worth retrying blindly.
func StoreUnavailable(err error) error {
	return &Error{Kind: KindStoreUnavailable, Message: "data store unavailable", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the caller-facing message of a typed error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return ""
}
