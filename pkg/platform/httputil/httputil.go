// Package httputil carries the shared HTTP response plumbing: JSON writing,
// coded-error translation, and generic request decoding. Handlers stay thin by
// pushing body handling through DecodeAndPrepare and error shaping through
// WriteError.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "custodia/pkg/domain-errors"
)

// Validatable is implemented by request bodies that validate and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// errorResponse is the wire shape for all error replies.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError translates an error into the standard error body. Coded errors
// map onto statuses via ToHTTPStatus; anything uncoded is treated as internal.
// Descriptions are omitted on server-side failures so internals never leak to
// clients; the full error is for logs.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	if de, ok := dErrors.Load(err); ok {
		code = de.Code
		message = de.Message
	}

	status := ToHTTPStatus(code)
	resp := errorResponse{Error: string(code)}
	if status < http.StatusInternalServerError {
		resp.Description = message
	}
	WriteJSON(w, status, resp)
}

// ToHTTPStatus maps a domain error code onto an HTTP status.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict,
		dErrors.CodeInvalidTransition,
		dErrors.CodeImmutableAfterDecision,
		dErrors.CodeCollision:
		return http.StatusConflict
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		// CodeInternal, CodeInvariantViolation, CodeIsolationViolation and
		// anything unknown are server faults.
		return http.StatusInternalServerError
	}
}

// DecodeAndPrepare decodes the request body into T and, when T implements
// Validatable, validates it. On failure it writes the error response and
// returns ok=false; handlers just return.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}

	return &req, true
}
