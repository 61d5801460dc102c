package httptransport

import (
	"strconv"
	"time"

	"custodia/internal/erasure/models"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/audit"
)

// erasureRequestResponse is the wire shape for one erasure request.
type erasureRequestResponse struct {
	ID          string     `json:"id"`
	SubjectID   string     `json:"subject_id"`
	Tier        string     `json:"tier,omitempty"`
	Status      string     `json:"status"`
	Code        string     `json:"code,omitempty"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`
	DecidedBy   string     `json:"decided_by,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

func toRequestResponse(req *models.ErasureRequest) erasureRequestResponse {
	return erasureRequestResponse{
		ID:          req.ID.String(),
		SubjectID:   req.SubjectID.String(),
		Tier:        req.Tier.String(),
		Status:      req.Status.String(),
		Code:        req.Code.String(),
		RequestedAt: req.RequestedAt,
		DecidedAt:   req.DecidedAt,
		DecidedBy:   req.DecidedBy,
		Reason:      req.Reason,
	}
}

func toRequestResponses(reqs []*models.ErasureRequest) []erasureRequestResponse {
	out := make([]erasureRequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestResponse(req))
	}
	return out
}

// auditEventResponse is the wire shape for one audit event.
type auditEventResponse struct {
	ID               string    `json:"id"`
	Category         string    `json:"category"`
	Timestamp        time.Time `json:"timestamp"`
	Action           string    `json:"action"`
	SubjectID        string    `json:"subject_id,omitempty"`
	ErasureRequestID string    `json:"erasure_request_id,omitempty"`
	Code             string    `json:"code,omitempty"`
	Tier             string    `json:"tier,omitempty"`
	Decision         string    `json:"decision,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	ActorID          string    `json:"actor_id,omitempty"`
	IP               string    `json:"ip,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	Detail           string    `json:"detail,omitempty"`
}

func toEventResponses(events []audit.Event) []auditEventResponse {
	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:               e.ID.String(),
			Category:         string(e.Category),
			Timestamp:        e.Timestamp,
			Action:           e.Action,
			SubjectID:        e.SubjectID,
			ErasureRequestID: e.ErasureRequestID,
			Code:             e.Code,
			Tier:             e.Tier,
			Decision:         e.Decision,
			Reason:           e.Reason,
			ActorID:          e.ActorID,
			IP:               e.IP,
			RequestID:        e.RequestID,
			Detail:           e.Detail,
		})
	}
	return out
}

func parseLimit(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "limit must be a non-negative integer").Add("limit", s)
	}
	return n, nil
}
