// Package apperr defines the error taxonomy shared by services and the HTTP
// layer.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindAggregationFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failed"
	case KindAggregationFailed:
		return "aggregation_failed"
	default:
		return "internal"
	}
}

// Error carries a kind, a caller-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Unauthorized(msg string) error { return New(KindUnauthorized, msg) }

func Forbidden(msg string) error { return New(KindForbidden, msg) }

func NotFound(msg string) error { return New(KindNotFound, msg) }

func Validation(msg string) error { return New(KindValidation, msg) }

func Internal(msg string, err error) error { return Wrap(KindInternal, msg, err) }

func AggregationFailed(err error) error {
	return Wrap(KindAggregationFailed, "failed to aggregate seller statistics", err)
}

// KindOf reports the kind of err; errors outside the taxonomy are internal.
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

// HTTPStatus maps err onto a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to a caller. Internal details
// never leave the process.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Server error"
	}
	switch e.Kind {
	case KindInternal, KindAggregationFailed:
		return "Server error"
	}
	return e.Message
}
