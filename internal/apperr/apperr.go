// Package apperr holds the typed errors shared by services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindValidation
	KindTransient
	KindFatalConfig
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation_error"
	case KindTransient:
		return "store_unavailable"
	case KindFatalConfig:
		return "fatal_configuration"
	default:
		return "internal_error"
	}
}

// FieldError is used to indicate an error with a specific request field.
type FieldError struct {
	Field   string
	Message string
}

// Error is a classified application error. Code is a stable machine-readable
// identifier; Message is safe to show to callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind. An empty code defaults to the kind name.
func New(kind Kind, code, msg string) *Error {
	if code == "" {
		code = kind.String()
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

func NotFound(msg string) *Error     { return New(KindNotFound, "", msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, "", msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, "", msg) }

// Conflict builds a conflict error with a specific code such as "room_conflict".
func Conflict(code, msg string) *Error { return New(KindConflict, code, msg) }

// Validation builds a validation error carrying per-field messages.
func Validation(msg string, fields ...FieldError) *Error {
	e := New(KindValidation, "", msg)
	e.Fields = fields
	return e
}

// Transient wraps a retryable storage failure.
func Transient(err error) *Error {
	e := New(KindTransient, "", "storage temporarily unavailable")
	e.Err = err
	return e
}

// FatalConfig wraps a startup failure that must abort the process.
func FatalConfig(msg string, err error) *Error {
	e := New(KindFatalConfig, "", msg)
	e.Err = err
	return e
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
