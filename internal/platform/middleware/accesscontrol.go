package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"custodia/internal/platform/token"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// TokenValidator validates bearer tokens for the access-control middleware.
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// SecurityRecorder receives best-effort security events from the chain.
type SecurityRecorder interface {
	RecordSecurity(ctx context.Context, event audit.SecurityEvent)
}

// AccessControl authenticates every request with a bearer token and, on
// mutating methods, additionally requires the compliance role. Denials are
// recorded as security events; the response never says which check failed
// beyond the status code.
func AccessControl(validator TokenValidator, security SecurityRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := bearerToken(r)
			if !ok {
				deny(ctx, w, security, logger, r, "missing_token",
					dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.Validate(raw)
			if err != nil {
				deny(ctx, w, security, logger, r, "bad_token", err)
				return
			}

			actorID, err := id.ParseActorID(claims.ActorID)
			if err != nil {
				deny(ctx, w, security, logger, r, "bad_actor_claim",
					dErrors.New(dErrors.CodeUnauthorized, "invalid token claims"))
				return
			}

			if isMutating(r.Method) && !claims.HasRole(token.RoleCompliance) {
				ctx = requestcontext.WithActorID(ctx, actorID)
				deny(ctx, w, security, logger, r, "missing_role",
					dErrors.New(dErrors.CodeForbidden, "compliance role required"))
				return
			}

			ctx = requestcontext.WithActorID(ctx, actorID)
			ctx = requestcontext.WithActorRoles(ctx, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}

func deny(ctx context.Context, w http.ResponseWriter, security SecurityRecorder, logger *slog.Logger, r *http.Request, reason string, err error) {
	requestID := GetRequestID(ctx)
	logger.WarnContext(ctx, "access denied",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"reason", reason,
	)
	if security != nil {
		actor := ""
		if a := requestcontext.ActorID(ctx); !a.IsZero() {
			actor = a.String()
		}
		severity := audit.SeverityWarning
		if reason == "missing_role" {
			// An authenticated principal probing mutations it cannot perform
			// is a stronger signal than a stray unauthenticated call.
			severity = audit.SeverityCritical
		}
		security.RecordSecurity(ctx, audit.SecurityEvent{
			Subject:   r.Method + " " + r.URL.Path,
			Action:    audit.EventAccessDenied,
			Reason:    reason,
			IP:        requestcontext.ClientIP(ctx),
			RequestID: requestID,
			ActorID:   actor,
			Severity:  severity,
		})
	}
	httputil.WriteError(w, err)
}
