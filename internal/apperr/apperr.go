// Package apperr defines the typed error kinds shared by the exchange
// core and the HTTP surface. Every error crossing a package boundary is
// tagged with exactly one Kind so the boundary can decide between
// rejecting, retrying and surfacing a 5xx.
package apperr

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies a failure.
type Kind string

const (
	Unauthenticated   Kind = "UNAUTHENTICATED"
	Forbidden         Kind = "FORBIDDEN"
	Validation        Kind = "VALIDATION"
	UnknownTicker     Kind = "UNKNOWN_TICKER"
	InsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	OrderNotFound     Kind = "ORDER_NOT_FOUND"
	NotFound          Kind = "NOT_FOUND"
	CannotCancel      Kind = "CANNOT_CANCEL"
	Conflict          Kind = "CONFLICT"
	Internal          Kind = "INTERNAL"
)

// Error carries a Kind and an underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a new error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Err: errors.New(msg)}
}

// Newf returns a new formatted error of the given kind.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Wrap tags err with a kind, annotating it with msg. Returns nil when
// err is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// KindOf walks the error chain and returns the outermost tagged kind,
// or Internal when untagged.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		err = errors.Unwrap(err)
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto its HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case Validation, InsufficientFunds, CannotCancel:
		return http.StatusBadRequest
	case UnknownTicker, OrderNotFound, NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing detail string for err.
func Message(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Err.Error()
	}
	return err.Error()
}
