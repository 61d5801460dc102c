// Package middleware holds the admin API middleware chain. Every entry is
// registered by name in Build so the configured chain is the chain the
// security.middleware startup check inspects.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"custodia/pkg/requestcontext"
)

// HeaderRequestID is the correlation header honored and echoed by RequestID.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns each request a correlation ID. An incoming X-Request-ID
// is kept so IDs survive proxies; otherwise a fresh UUID is minted. The ID is
// echoed on the response and stored in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(HeaderRequestID, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the correlation ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
