package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping and retry decisions.
//
// Rules:
// - Validation and authentication errors are detected at the boundary, before any write.
// - Storage errors are classified at the transaction boundary; handlers never see raw driver errors.
// - Transient errors are safe for the caller to retry; everything else is not.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "authentication"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTransient  Kind = "transient"
	KindInternal   Kind = "internal"
)

// Error carries a classified kind, a message safe to return to external
// callers, and the underlying cause for server-side logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error { return New(KindValidation, message) }
func Auth(message string) *Error       { return New(KindAuth, message) }
func NotFound(message string) *Error   { return New(KindNotFound, message) }
func Conflict(message string) *Error   { return New(KindConflict, message) }

// KindOf extracts the kind from err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may safely retry the operation.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}

// PublicMessage returns the message safe to expose to external callers.
// Internal and transient errors get a generic message; detail stays in logs.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindTransient, KindInternal:
			return "An error occurred processing your request"
		default:
			return e.Message
		}
	}
	return "An error occurred processing your request"
}

// HTTPStatus maps an error to the response status per the API contract.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindAuth:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
