package middleware

import (
	"log/slog"
	"net/http"

	"github.com/conductor-hq/conductor/internal/api/shared"
	"github.com/conductor-hq/conductor/internal/platform/logger"
)

// TraceID attaches a new trace ID to every request and stores a
// request-scoped logger carrying it, so all downstream log lines correlate.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		requestLogger := logger.FromContext(ctx).With(
			slog.String("trace_id", shared.GetTraceID(ctx)),
		)
		ctx = logger.WithLogger(ctx, requestLogger)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
