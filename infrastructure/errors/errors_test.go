package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringIncludesCodeAndMessage(t *testing.T) {
	e := New(CodeNotFound, "resource not found", http.StatusNotFound)
	assert.Equal(t, "[NOT_FOUND] resource not found", e.Error())
}

func TestErrorStringIncludesWrappedCause(t *testing.T) {
	cause := stderrors.New("boom")
	e := Wrap(CodeInternal, "failed", http.StatusInternalServerError, cause)
	assert.Contains(t, e.Error(), "boom")
	assert.Same(t, cause, e.Unwrap())
}

func TestWithDetailsChains(t *testing.T) {
	e := New(CodeInvalidFormat, "bad", http.StatusBadRequest).
		WithDetails("field", "prompt").
		WithDetails("reason", "too long")

	assert.Equal(t, "prompt", e.Details["field"])
	assert.Equal(t, "too long", e.Details["reason"])
}

func TestIsMatchesWrappedCoordinatorError(t *testing.T) {
	err := NotFound("task", "t1")
	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, Is(wrapped, CodeNotFound))

	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(err, CodeForbidden))
	assert.False(t, Is(stderrors.New("plain"), CodeNotFound))
}

func TestHTTPStatusExtractsFromCoordinatorError(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(NoCapableWorker("no tier match")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain")))
}

func TestConstructorsSetExpectedCodeAndStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        *CoordinatorError
		wantCode   Code
		wantStatus int
	}{
		{"Unauthorized", Unauthorized("no token"), CodeUnauthorized, http.StatusUnauthorized},
		{"Forbidden", Forbidden("account suspended"), CodeForbidden, http.StatusForbidden},
		{"SendFailed", SendFailed(stderrors.New("closed")), CodeSendFailed, http.StatusBadGateway},
		{"Timeout", Timeout("task-assign"), CodeTimeout, http.StatusGatewayTimeout},
		{"WorkerError", WorkerError("OOM", "out of memory"), CodeWorkerError, http.StatusBadGateway},
		{"DecryptionFailed", DecryptionFailed(stderrors.New("auth tag mismatch")), CodeDecryptionFailed, http.StatusInternalServerError},
		{"InvalidResponse", InvalidResponse("not json"), CodeInvalidResponse, http.StatusBadGateway},
		{"Overloaded", Overloaded("stream-1"), CodeOverloaded, http.StatusServiceUnavailable},
		{"Internal", Internal("panic recovered", stderrors.New("nil pointer")), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCode, tc.err.Code)
			assert.Equal(t, tc.wantStatus, tc.err.HTTPStatus)
		})
	}
}
