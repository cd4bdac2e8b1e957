// Package apperr defines the error kinds surfaced by the task API and the
// HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindStorage
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStorage:
		return "storage"
	case KindSchema:
		return "schema"
	default:
		return "unknown"
	}
}

// Error is an error with a kind, a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// Reason is set for storage errors by ClassifyDriverError.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NotFound reports a reference to a task that does not exist.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Storage wraps a database failure that happened while performing op.
func Storage(op string, err error) *Error {
	return &Error{
		Kind:    KindStorage,
		Message: op,
		Reason:  ClassifyDriverError(err),
		Err:     err,
	}
}

// Schema wraps a failure to create the schema at startup.
func Schema(err error) *Error {
	return &Error{Kind: KindSchema, Message: "initializing schema", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReasonOf returns the driver error reason of the first *Error in err's
// chain, or "" when there is none.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message a client may see for err. Storage, schema
// and unclassified failures are never exposed.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && (e.Kind == KindValidation || e.Kind == KindNotFound) {
		return e.Message
	}
	return "Internal server error"
}
