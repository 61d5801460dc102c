package httptransport

//go:generate mockgen -source=handlers_audit.go -destination=mocks/audit_reader.go -package=mocks AuditReader

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/platform/middleware"
	"custodia/pkg/platform/audit"
	"custodia/pkg/platform/httputil"
)

// defaultAuditLimit bounds an unqualified audit listing.
const defaultAuditLimit = 100

// AuditReader is the read-only audit surface exposed to admins.
type AuditReader interface {
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// AuditHandler serves the audit-trail read endpoint.
type AuditHandler struct {
	logger *slog.Logger
	events AuditReader
}

// NewAuditHandler creates the handler.
func NewAuditHandler(events AuditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		logger: logger,
		events: events,
	}
}

// Register mounts the audit routes on the router.
func (h *AuditHandler) Register(r chi.Router) {
	r.Get("/audit/events", h.handleListEvents)
}

func (h *AuditHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	q := r.URL.Query()
	limit := defaultAuditLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := parseLimit(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if n > 0 {
			limit = n
		}
	}

	var (
		events []audit.Event
		err    error
	)
	if subject := q.Get("subject"); subject != "" {
		events, err = h.events.ListBySubject(ctx, subject, limit)
	} else {
		events, err = h.events.ListRecent(ctx, limit)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "list audit events failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": toEventResponses(events),
	})
}
