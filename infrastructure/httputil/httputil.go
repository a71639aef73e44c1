// Package httputil provides the small set of response-writing helpers
// the coordinator's client submission surface shares, modeled on the
// teacher's infrastructure/httputil package.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
)

// ErrorResponse is the standard JSON error envelope.
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes err as a standard ErrorResponse, deriving the HTTP
// status and code from it if it is a CoordinatorError.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := ierrors.HTTPStatus(err)
	code := "INTERNAL"
	var details interface{}
	var ce *ierrors.CoordinatorError
	if errors.As(err, &ce) {
		code = string(ce.Code)
		if len(ce.Details) > 0 {
			details = ce.Details
		}
	}

	traceID := w.Header().Get("X-Trace-ID")
	WriteJSON(w, status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
		Details: details,
		TraceID: traceID,
	})
}

// ParseJSONBody decodes the request body into dst, wrapping decode
// errors as InvalidFormat.
func ParseJSONBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return ierrors.InvalidFormat("body", fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}
