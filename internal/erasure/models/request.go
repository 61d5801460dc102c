package models

import (
	"fmt"
	"time"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

// ErasureRequest is the aggregate for one subject's demand to be forgotten.
//
// Invariants:
//   - SubjectID is immutable after creation
//   - Tier is mutable only while Status is pending
//   - Code is assigned exactly once and never reused, even by requests that
//     end rejected or cancelled; uniqueness spans every request ever created
//   - Status leaves pending at most once; DecidedAt and DecidedBy are set on
//     that move and never change again
//
// The decision is the commit point for the request's destructive side
// effects: nothing touches the subject while the request is pending, and the
// tier chosen at decision time dictates exactly what is destroyed.
type ErasureRequest struct {
	ID          id.RequestID   `json:"id"`
	SubjectID   id.SubjectID   `json:"subject_id"`
	Tier        Tier           `json:"tier,omitempty"`
	Status      Status         `json:"status"`
	Code        id.ErasureCode `json:"code,omitempty"`
	RequestedAt time.Time      `json:"requested_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	DecidedBy   string         `json:"decided_by,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// NewErasureRequest builds a pending request. Code assignment is the store's
// job: it happens inside the create transaction where the year's sequence
// can be read consistently.
func NewErasureRequest(requestID id.RequestID, subjectID id.SubjectID, tier Tier, reason string, now time.Time) (*ErasureRequest, error) {
	if subjectID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject id is required")
	}
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown erasure tier: "+tier.String()).Add("tier", tier.String())
	}
	return &ErasureRequest{
		ID:          requestID,
		SubjectID:   subjectID,
		Tier:        tier,
		Status:      StatusPending,
		RequestedAt: now.UTC(),
		Reason:      reason,
	}, nil
}

// IsDecided reports whether the request has left pending.
func (r *ErasureRequest) IsDecided() bool {
	return r.Status.IsTerminal()
}

// CanChangeTier checks that the tier is still mutable and the new tier
// valid. Returns CodeImmutableAfterDecision once the request is decided.
func (r *ErasureRequest) CanChangeTier(next Tier) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown erasure tier: "+next.String()).Add("tier", next.String())
	}
	if r.IsDecided() {
		return dErrors.New(dErrors.CodeImmutableAfterDecision,
			fmt.Sprintf("tier is immutable after decision: request %s is %s", r.ID, r.Status)).
			Add("status", r.Status.String())
	}
	return nil
}

// ApplyTierChange records the new tier. Call CanChangeTier first.
func (r *ErasureRequest) ApplyTierChange(next Tier) {
	r.Tier = next
}

// CanDecide checks the transition pending → outcome for this request's
// tier. Returns CodeInvalidTransition naming the current and requested
// states when the request is already terminal or the tier forbids the
// outcome.
func (r *ErasureRequest) CanDecide(outcome Status) error {
	if !outcome.IsTerminal() {
		return dErrors.New(dErrors.CodeValidation,
			"decision outcome must be a terminal status, got "+outcome.String()).Add("outcome", outcome.String())
	}
	if !r.Status.CanTransitionTo(outcome) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("cannot transition request %s from %s to %s", r.ID, r.Status, outcome)).
			Add("from", r.Status.String()).
			Add("to", outcome.String())
	}
	if !r.Tier.AllowsOutcome(outcome) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("tier %s does not permit outcome %s", r.Tier, outcome)).
			Add("tier", r.Tier.String()).
			Add("to", outcome.String())
	}
	return nil
}

// ApplyDecision records the transition out of pending. Call CanDecide first.
func (r *ErasureRequest) ApplyDecision(outcome Status, actor string, now time.Time) {
	r.Status = outcome
	decidedAt := now.UTC()
	r.DecidedAt = &decidedAt
	r.DecidedBy = actor
}

// NewRequest is the input for opening an erasure request.
type NewRequest struct {
	SubjectID id.SubjectID `json:"subject_id"`
	Tier      Tier         `json:"tier"`
	Reason    string       `json:"reason,omitempty"`
}

// Decision is the operator input that moves a request out of pending.
// Reason lands in the audit trail, not on the request: the request's own
// Reason field records why the subject asked for erasure.
type Decision struct {
	Outcome Status `json:"outcome"`
	Actor   string `json:"actor,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	SubjectID id.SubjectID
	Status    Status
	Limit     int
}

// BackfillReport summarizes one backfill run over historical requests.
type BackfillReport struct {
	Scanned       int `json:"scanned"`
	TiersAssigned int `json:"tiers_assigned"`
	CodesAssigned int `json:"codes_assigned"`
}
