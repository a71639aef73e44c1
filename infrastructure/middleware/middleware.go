// Package middleware provides HTTP middleware for the coordinator's
// client submission surface, modeled on the teacher's
// infrastructure/middleware package.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	ierrors "github.com/iris-network/coordinator/infrastructure/errors"
	"github.com/iris-network/coordinator/infrastructure/httputil"
	"github.com/iris-network/coordinator/infrastructure/logging"
	"github.com/iris-network/coordinator/infrastructure/metrics"
)

// responseWriter wraps http.ResponseWriter to capture the status code
// written, for logging and metrics.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Logging attaches a trace ID to the request context, logs the
// request/response, and records HTTP metrics.
func Logging(log *logging.Logger, m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get("X-Trace-ID")
			if traceID == "" {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			r = r.WithContext(ctx)
			w.Header().Set("X-Trace-ID", traceID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			log.WithContext(ctx).WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.statusCode,
				"duration_ms": duration.Milliseconds(),
			}).Info("http request")

			if m != nil {
				m.RecordHTTPRequest(r.Method, r.URL.Path, fmt.Sprintf("%d", wrapped.statusCode), duration)
			}
		})
	}
}

// Recovery recovers from panics in downstream handlers, logging the
// stack trace and responding with an Internal error rather than
// crashing the connection.
func Recovery(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					log.WithContext(r.Context()).WithFields(map[string]interface{}{
						"panic": fmt.Sprintf("%v", rec),
						"stack": string(stack),
						"path":  r.URL.Path,
					}).Error("panic recovered")

					httputil.WriteError(w, r, ierrors.Internal("internal server error", fmt.Errorf("%v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
