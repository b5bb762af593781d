// Package errs defines the error kinds shared by every domain package.
//
// Domain packages declare their sentinels through the constructors below, so a
// caller can match either the precise sentinel or the broader kind:
//
//	errors.Is(err, booking.ErrUnavailable) // precise
//	errors.Is(err, errs.ErrConflict)       // kind
package errs

import "errors"

// Kind classifies a domain error for callers that only care about the category.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindInvalidTransition Kind = "invalid_transition"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
)

var kinds = map[Kind]error{
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindForbidden:         ErrForbidden,
	KindConflict:          ErrConflict,
	KindInvalidTransition: ErrInvalidTransition,
}

// Error is a domain error tagged with a kind.
type Error struct {
	kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the kind sentinel to errors.Is.
func (e *Error) Unwrap() error { return kinds[e.kind] }

// Kind reports the error category.
func (e *Error) Kind() Kind { return e.kind }

func newError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func Validation(msg string) error        { return newError(KindValidation, msg) }
func NotFound(msg string) error          { return newError(KindNotFound, msg) }
func Forbidden(msg string) error         { return newError(KindForbidden, msg) }
func Conflict(msg string) error          { return newError(KindConflict, msg) }
func InvalidTransition(msg string) error { return newError(KindInvalidTransition, msg) }

// New builds an error of the given kind. Unknown kinds yield a plain error.
func New(kind Kind, msg string) error {
	if _, ok := kinds[kind]; !ok {
		return errors.New(msg)
	}
	return newError(kind, msg)
}

// KindOf returns the kind carried by err or any error it wraps.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.kind, true
	}
	for kind, sentinel := range kinds {
		if errors.Is(err, sentinel) {
			return kind, true
		}
	}
	return "", false
}
