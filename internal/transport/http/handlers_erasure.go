// Package httptransport is the thin admin HTTP layer: decode, validate,
// delegate, translate. Business rules live in the services; a handler that
// grows an if-statement about tiers or statuses is in the wrong package.
package httptransport

//go:generate mockgen -source=handlers_erasure.go -destination=mocks/erasure_service.go -package=mocks ErasureService

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custodia/internal/erasure/models"
	"custodia/internal/platform/middleware"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/httputil"
	"custodia/pkg/requestcontext"
)

// ErasureService is the erasure workflow surface the handlers delegate to.
type ErasureService interface {
	Create(ctx context.Context, input models.NewRequest) (*models.ErasureRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.ErasureRequest, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.ErasureRequest, error)
	ChangeTier(ctx context.Context, requestID id.RequestID, tier models.Tier) (*models.ErasureRequest, error)
	Decide(ctx context.Context, requestID id.RequestID, decision models.Decision) (*models.ErasureRequest, error)
	Backfill(ctx context.Context) (models.BackfillReport, error)
}

// ErasureHandler serves the erasure-request admin endpoints.
type ErasureHandler struct {
	logger  *slog.Logger
	erasure ErasureService
}

// NewErasureHandler creates the handler.
func NewErasureHandler(erasure ErasureService, logger *slog.Logger) *ErasureHandler {
	return &ErasureHandler{
		logger:  logger,
		erasure: erasure,
	}
}

// Register mounts the erasure routes on the router.
func (h *ErasureHandler) Register(r chi.Router) {
	r.Post("/erasure/requests", h.handleCreate)
	r.Get("/erasure/requests", h.handleList)
	r.Get("/erasure/requests/{id}", h.handleGet)
	r.Patch("/erasure/requests/{id}/tier", h.handleChangeTier)
	r.Post("/erasure/requests/{id}/decision", h.handleDecide)
	r.Post("/admin/backfill", h.handleBackfill)
}

func (h *ErasureHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	body, ok := httputil.DecodeAndPrepare[createRequestBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.erasure.Create(ctx, body.parsed)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "create erasure request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *ErasureHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	q := r.URL.Query()
	filter, err := parseListFilter(q.Get("subject"), q.Get("status"), q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	requests, err := h.erasure.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "list erasure requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"requests": toRequestResponses(requests),
	})
}

func (h *ErasureHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	erasureID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.erasure.Get(ctx, erasureID)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "get erasure request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *ErasureHandler) handleChangeTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	erasureID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	body, ok := httputil.DecodeAndPrepare[changeTierBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	updated, err := h.erasure.ChangeTier(ctx, erasureID, body.parsed)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "change erasure tier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

func (h *ErasureHandler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	erasureID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	body, ok := httputil.DecodeAndPrepare[decisionBody](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision := models.Decision{
		Outcome: body.parsed,
		Reason:  body.Reason,
	}
	if actorID := requestcontext.ActorID(ctx); !actorID.IsZero() {
		decision.Actor = actorID.String()
	}

	decided, err := h.erasure.Decide(ctx, erasureID, decision)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "decide erasure request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(decided))
}

func (h *ErasureHandler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	report, err := h.erasure.Backfill(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, requestID, "run backfill", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// writeServiceError logs server faults and passes every coded error through
// to the client untouched; the status mapping lives in httputil.
func (h *ErasureHandler) writeServiceError(ctx context.Context, w http.ResponseWriter, requestID, op string, err error) {
	if de, ok := dErrors.Load(err); ok && httputil.ToHTTPStatus(de.Code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, op+" refused",
			"request_id", requestID,
			"code", string(de.Code),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.ErrorContext(ctx, op+" failed",
		"request_id", requestID,
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}
