package http

import (
	"net/http"

	"github.com/google/uuid"

	context_ "github.com/mkrupp/promptbank/internal/infra/context"
	"github.com/mkrupp/promptbank/internal/util/encoding"
)

const TraceIDHeader = "X-Request-ID"

// maxTraceIDLength bounds client supplied trace IDs before they reach the logs.
const maxTraceIDLength = 64

// TracingMiddleware creates middleware that adds request tracing.
// It uses the X-Request-ID header if present, otherwise generates a new UUIDv7.
// The trace ID is added to the request context and echoed in the response.
func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := getTraceID(r)
		w.Header().Set(TraceIDHeader, traceID)

		ctx := context_.WithTraceID(r.Context(), traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getTraceID(r *http.Request) string {
	if traceID := r.Header.Get(TraceIDHeader); traceID != "" && len(traceID) <= maxTraceIDLength {
		return encoding.NormalizeCrockfordB32LC(traceID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return ""
	}

	return encoding.EncodeCrockfordB32LC(id[:])
}
