package middleware

import (
	"net/http"

	"custodia/pkg/platform/audit"
	"custodia/pkg/requestcontext"
)

// AuditLog records a security-category event for every mutating admin call
// that reached a handler, successful or not: the attempt itself is the fact
// worth keeping. Recording is best-effort and never affects the response.
func AuditLog(security SecurityRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) || security == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			severity := audit.SeverityInfo
			if status >= http.StatusBadRequest {
				severity = audit.SeverityWarning
			}
			actor := ""
			if a := requestcontext.ActorID(ctx); !a.IsZero() {
				actor = a.String()
			}
			security.RecordSecurity(ctx, audit.SecurityEvent{
				Subject:   r.Method + " " + r.URL.Path,
				Action:    audit.EventAdminMutation,
				Reason:    http.StatusText(status),
				IP:        requestcontext.ClientIP(ctx),
				RequestID: GetRequestID(ctx),
				ActorID:   actor,
				Severity:  severity,
			})
		})
	}
}
