package testutil

import (
	"net/http"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// WithActor adds an authenticated actor to the request context, simulating
// what the access-control middleware does. An invalid actor ID is silently
// ignored so tests can probe the unauthenticated path with the same helper.
func WithActor(req *http.Request, actorID string, roles ...string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseActorID(actorID); err == nil {
		ctx = requestcontext.WithActorID(ctx, parsed)
	}
	if len(roles) > 0 {
		ctx = requestcontext.WithActorRoles(ctx, roles)
	}
	return req.WithContext(ctx)
}
