package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeStale         Code = "STALE_CONTEXT"
	CodeDegraded      Code = "SIDE_EFFECT_DEGRADED"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodePersistence   Code = "PERSISTENCE_FAILED"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Metadata describes how an error code is surfaced to callers.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	Blocking       bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeStale: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		Blocking:       false,
		PublicMessage:  "response no longer applies",
		DetailsAllowed: false,
	},
	CodeDegraded: {
		HTTPStatus:     http.StatusAccepted,
		Retryable:      true,
		Blocking:       false,
		PublicMessage:  "side effect queued for retry",
		DetailsAllowed: true,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		Blocking:       false,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodePersistence: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      false,
		Blocking:       true,
		PublicMessage:  "order could not be persisted",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		Blocking:       true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf extracts the domain code from any error, defaulting to internal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether the caller may repeat the failed operation.
func IsRetryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}

// IsStale reports whether the error marks a response that arrived for a
// context the operator has already left. Stale errors are discarded silently.
func IsStale(err error) bool {
	return CodeOf(err) == CodeStale
}
