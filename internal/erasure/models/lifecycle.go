package models

import (
	"fmt"

	dErrors "custodia/pkg/domain-errors"
)

// Tier selects how much of the subject's data a granted request destroys.
// The tier is chosen at creation, may be changed while the request is
// pending, and is frozen by the decision; the decision outcome must match
// the tier (see AllowsOutcome).
type Tier string

// Supported erasure tiers, from least to most destructive.
const (
	// TierAnonymise strips the subject's identifying fields in place. The
	// record and its notes survive for statistical aggregation.
	TierAnonymise Tier = "anonymise"
	// TierAnonymisePurge additionally deletes the subject's free-text
	// notes, which can embed identifying details that field stripping
	// cannot reach.
	TierAnonymisePurge Tier = "anonymise_purge"
	// TierFullErasure deletes the subject row and every dependent record.
	TierFullErasure Tier = "full_erasure"
)

// validTiers is the single source of truth for valid tiers.
var validTiers = map[Tier]bool{
	TierAnonymise:      true,
	TierAnonymisePurge: true,
	TierFullErasure:    true,
}

// ParseTier constructs a Tier from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "tier cannot be empty")
	}
	t := Tier(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown erasure tier: "+s).Add("tier", s)
	}
	return t, nil
}

// IsValid checks if the tier is one of the supported enum values.
func (t Tier) IsValid() bool {
	return validTiers[t]
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// AllowsOutcome reports whether this tier permits the given decision
// outcome: anonymisation outcomes require an anonymising tier, approval
// requires full_erasure, and rejection or cancellation are tier-independent.
func (t Tier) AllowsOutcome(outcome Status) bool {
	switch outcome {
	case StatusAnonymised:
		return t == TierAnonymise || t == TierAnonymisePurge
	case StatusApproved:
		return t == TierFullErasure
	case StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

// Status is the erasure-request lifecycle state. pending is the only
// non-terminal state; every move out of it is final and happens at most
// once.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAnonymised Status = "anonymised"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// validStatuses is the single source of truth for valid statuses.
var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusAnonymised: true,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusCancelled:  true,
}

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "status cannot be empty")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown erasure status: "+s).Add("status", s)
	}
	return st, nil
}

// ParseOutcome constructs a decision outcome from external input: a valid,
// terminal status.
func ParseOutcome(s string) (Status, error) {
	st, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	if !st.IsTerminal() {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("decision outcome must be terminal, got %q", s)).Add("status", s)
	}
	return st, nil
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status ends the lifecycle.
func (s Status) IsTerminal() bool {
	return s.IsValid() && s != StatusPending
}

// CanTransitionTo reports whether the lifecycle permits moving to next.
// The only transitions that exist are pending → terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}
