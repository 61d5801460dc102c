package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
)

// Recovery converts a handler panic into a 500 response instead of tearing
// down the connection. The stack goes to the log, never to the client.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "panic while serving request",
						"request_id", GetRequestID(ctx),
						"method", r.Method,
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
