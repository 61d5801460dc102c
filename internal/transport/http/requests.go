package httptransport

import (
	"custodia/internal/erasure/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// createRequestBody is the wire shape for opening an erasure request.
type createRequestBody struct {
	SubjectID string `json:"subject_id"`
	Tier      string `json:"tier"`
	Reason    string `json:"reason,omitempty"`

	parsed models.NewRequest
}

// Validate parses and validates the body; the parsed input is kept for the
// handler so strings cross the trust boundary exactly once.
func (b *createRequestBody) Validate() error {
	subjectID, err := id.ParseSubjectID(b.SubjectID)
	if err != nil {
		return err
	}
	tier, err := models.ParseTier(b.Tier)
	if err != nil {
		return err
	}
	b.parsed = models.NewRequest{
		SubjectID: subjectID,
		Tier:      tier,
		Reason:    b.Reason,
	}
	return nil
}

// changeTierBody is the wire shape for changing a pending request's tier.
type changeTierBody struct {
	Tier string `json:"tier"`

	parsed models.Tier
}

func (b *changeTierBody) Validate() error {
	tier, err := models.ParseTier(b.Tier)
	if err != nil {
		return err
	}
	b.parsed = tier
	return nil
}

// decisionBody is the wire shape for deciding a request. The outcome must be
// terminal; tier compatibility is the service's call.
type decisionBody struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`

	parsed models.Status
}

func (b *decisionBody) Validate() error {
	outcome, err := models.ParseOutcome(b.Outcome)
	if err != nil {
		return err
	}
	if outcome == models.StatusRejected && b.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "a rejection requires a reason").Add("outcome", b.Outcome)
	}
	b.parsed = outcome
	return nil
}

// parseListFilter reads the optional subject, status and limit query
// parameters.
func parseListFilter(subject, status, limit string) (models.ListFilter, error) {
	var filter models.ListFilter
	if subject != "" {
		subjectID, err := id.ParseSubjectID(subject)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.SubjectID = subjectID
	}
	if status != "" {
		st, err := models.ParseStatus(status)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.Status = st
	}
	if limit != "" {
		n, err := parseLimit(limit)
		if err != nil {
			return models.ListFilter{}, err
		}
		filter.Limit = n
	}
	return filter, nil
}
