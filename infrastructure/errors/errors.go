// Package errors provides unified, structured error handling for the
// coordinator, modeled on the teacher's ServiceError: a stable code,
// an HTTP status for the client-facing surface, and an optional
// wrapped cause.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is one of the error kinds named in spec.md §7.
type Code string

const (
	CodeUnauthorized     Code = "UNAUTHORIZED"
	CodeInvalidFormat    Code = "INVALID_FORMAT"
	CodeNotFound         Code = "NOT_FOUND"
	CodeForbidden        Code = "FORBIDDEN"
	CodeNoCapableWorker  Code = "NO_CAPABLE_WORKER"
	CodeSendFailed       Code = "SEND_FAILED"
	CodeTimeout          Code = "TIMEOUT"
	CodeWorkerError      Code = "WORKER_ERROR"
	CodeDecryptionFailed Code = "DECRYPTION_FAILED"
	CodeInvalidResponse  Code = "INVALID_RESPONSE"
	CodeOverloaded       Code = "OVERLOADED"
	CodeInternal         Code = "INTERNAL"
)

// CoordinatorError is a structured error with a stable code, an HTTP
// status for the client-facing surface, and optional details.
type CoordinatorError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *CoordinatorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CoordinatorError) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair, returning e for chaining.
func (e *CoordinatorError) WithDetails(key string, value interface{}) *CoordinatorError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string, httpStatus int) *CoordinatorError {
	return &CoordinatorError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code Code, message string, httpStatus int, err error) *CoordinatorError {
	return &CoordinatorError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// Constructors, one per spec.md §7 error kind.

func Unauthorized(message string) *CoordinatorError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidFormat(field, reason string) *CoordinatorError {
	return New(CodeInvalidFormat, "invalid format", http.StatusBadRequest).
		WithDetails("field", field).WithDetails("reason", reason)
}

func NotFound(resource, id string) *CoordinatorError {
	return New(CodeNotFound, "resource not found", http.StatusNotFound).
		WithDetails("resource", resource).WithDetails("id", id)
}

func Forbidden(message string) *CoordinatorError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

func NoCapableWorker(reason string) *CoordinatorError {
	return New(CodeNoCapableWorker, "no capable worker available", http.StatusServiceUnavailable).
		WithDetails("reason", reason)
}

func SendFailed(err error) *CoordinatorError {
	return Wrap(CodeSendFailed, "send to worker failed", http.StatusBadGateway, err)
}

func Timeout(operation string) *CoordinatorError {
	return New(CodeTimeout, "operation timed out", http.StatusGatewayTimeout).
		WithDetails("operation", operation)
}

func WorkerError(errCode, errMessage string) *CoordinatorError {
	return New(CodeWorkerError, errMessage, http.StatusBadGateway).
		WithDetails("worker_error_code", errCode)
}

func DecryptionFailed(err error) *CoordinatorError {
	return Wrap(CodeDecryptionFailed, "decryption failed", http.StatusInternalServerError, err)
}

func InvalidResponse(reason string) *CoordinatorError {
	return New(CodeInvalidResponse, "invalid worker response", http.StatusBadGateway).
		WithDetails("reason", reason)
}

func Overloaded(queue string) *CoordinatorError {
	return New(CodeOverloaded, "stream queue full", http.StatusServiceUnavailable).
		WithDetails("queue", queue)
}

func Internal(message string, err error) *CoordinatorError {
	return Wrap(CodeInternal, message, http.StatusInternalServerError, err)
}

// Is reports whether err is a CoordinatorError with the given code.
func Is(err error, code Code) bool {
	var ce *CoordinatorError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// HTTPStatus extracts the HTTP status for err, defaulting to 500.
func HTTPStatus(err error) int {
	var ce *CoordinatorError
	if errors.As(err, &ce) {
		return ce.HTTPStatus
	}
	return http.StatusInternalServerError
}
