package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Combine-Capital/ctxlog/pkg/logctx"
	"github.com/Combine-Capital/ctxlog/pkg/tracing"
)

// HTTPMiddleware is the request/response transport adapter. For every
// request it opens a fresh context scope, populates correlation and trace
// fields from the inbound headers, writes the response trace headers, and
// logs the request start and its finalized outcome.
//
// Error responses are written by the error classifier (pkg/errors), either
// called directly by handlers or via its recovery middleware; by the time
// next.ServeHTTP returns, status and body are fully determined, so the
// completion record always reflects the final response.
func HTTPMiddleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			scope := logctx.NewScope()
			ctx := logctx.WithScope(r.Context(), scope)

			requestID := r.Header.Get(tracing.HeaderRequestID)
			if requestID == "" {
				requestID = r.Header.Get("X-Request-ID")
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}
			scope.Set(FieldRequestID, requestID)
			scope.Set(FieldComponent, ComponentHTTP)
			scope.Set(FieldPath, r.URL.Path)

			if corr := r.Header.Get("x-correlation-id"); corr != "" {
				scope.Set(FieldCorrelationID, corr)
			}

			ids, ok := tracing.FromHeaders(r.Header)
			if ok {
				scope.Set(FieldTraceID, ids.TraceID)
				if ids.SpanID != "" {
					scope.Set(FieldSpanID, ids.SpanID)
				}
				if ids.ParentSpanID != "" {
					scope.Set(FieldParentSpanID, ids.ParentSpanID)
				}
				if ids.Flags != "" {
					scope.Set(FieldTraceFlags, ids.Flags)
				}
			}

			ctx = tracing.ExtractHTTP(ctx, r.Header)
			tracing.WriteHeaders(w.Header(), requestID, ids)

			r = r.WithContext(ctx)

			logger.Info(ctx, "request started", WithMeta(Fields{
				FieldHTTPMethod: r.Method,
				"remote_addr":   r.RemoteAddr,
			}))

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			meta := Fields{
				FieldHTTPMethod: r.Method,
				FieldStatusCode: wrapped.statusCode,
				FieldDuration:   time.Since(start).Milliseconds(),
			}
			if wrapped.statusCode >= 500 {
				logger.Error(ctx, "request completed", WithMeta(meta))
			} else {
				logger.Info(ctx, "request completed", WithMeta(meta))
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the final status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
