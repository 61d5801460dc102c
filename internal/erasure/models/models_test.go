package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
)

func pendingRequest(tier Tier) *ErasureRequest {
	req, err := NewErasureRequest(
		id.NewRequestID(),
		id.SubjectID(uuid.New()),
		tier,
		"subject asked via support ticket",
		time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	)
	if err != nil {
		panic(err)
	}
	return req
}

func TestNewErasureRequest(t *testing.T) {
	t.Run("builds a pending request without a code", func(t *testing.T) {
		subjectID := id.SubjectID(uuid.New())
		now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

		req, err := NewErasureRequest(id.NewRequestID(), subjectID, TierAnonymise, "gdpr art. 17", now)
		require.NoError(t, err)

		assert.Equal(t, subjectID, req.SubjectID)
		assert.Equal(t, StatusPending, req.Status)
		assert.Equal(t, TierAnonymise, req.Tier)
		assert.True(t, req.Code.IsZero())
		assert.Nil(t, req.DecidedAt)
		assert.Equal(t, now, req.RequestedAt)
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		_, err := NewErasureRequest(id.NewRequestID(), id.SubjectID{}, TierAnonymise, "", time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		_, err := NewErasureRequest(id.NewRequestID(), id.SubjectID(uuid.New()), Tier("shred"), "", time.Now())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// TestStatusTransitions pins the whole transition table: pending reaches
// every terminal state and nothing else moves.
func TestStatusTransitions(t *testing.T) {
	terminals := []Status{StatusAnonymised, StatusApproved, StatusRejected, StatusCancelled}

	for _, next := range terminals {
		assert.True(t, StatusPending.CanTransitionTo(next), "pending -> %s must be allowed", next)
		assert.True(t, next.IsTerminal(), "%s must be terminal", next)
	}

	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.IsTerminal())

	for _, from := range terminals {
		for _, next := range append(terminals, StatusPending) {
			assert.False(t, from.CanTransitionTo(next), "%s -> %s must be refused", from, next)
		}
	}
}

// TestTierOutcomePairing pins which decision outcomes each tier permits.
func TestTierOutcomePairing(t *testing.T) {
	cases := []struct {
		tier    Tier
		outcome Status
		allowed bool
	}{
		{TierAnonymise, StatusAnonymised, true},
		{TierAnonymisePurge, StatusAnonymised, true},
		{TierFullErasure, StatusAnonymised, false},
		{TierFullErasure, StatusApproved, true},
		{TierAnonymise, StatusApproved, false},
		{TierAnonymisePurge, StatusApproved, false},
		{TierAnonymise, StatusRejected, true},
		{TierAnonymisePurge, StatusRejected, true},
		{TierFullErasure, StatusRejected, true},
		{TierAnonymise, StatusCancelled, true},
		{TierAnonymisePurge, StatusCancelled, true},
		{TierFullErasure, StatusCancelled, true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.tier.AllowsOutcome(tc.outcome),
			"tier %s outcome %s", tc.tier, tc.outcome)
	}
}

func TestCanDecide(t *testing.T) {
	t.Run("pending anonymise tier accepts anonymised", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		require.NoError(t, req.CanDecide(StatusAnonymised))
	})

	t.Run("rejects non-terminal outcome", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		err := req.CanDecide(StatusPending)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("already decided names both states", func(t *testing.T) {
		req := pendingRequest(TierFullErasure)
		req.ApplyDecision(StatusApproved, "dpo@example.test", time.Now())

		err := req.CanDecide(StatusCancelled)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Contains(t, err.Error(), "approved")
		assert.Contains(t, err.Error(), "cancelled")
	})

	t.Run("tier forbids mismatched outcome", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		err := req.CanDecide(StatusApproved)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		assert.Contains(t, err.Error(), "anonymise")
	})
}

func TestApplyDecision(t *testing.T) {
	req := pendingRequest(TierFullErasure)
	decidedAt := time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

	req.ApplyDecision(StatusApproved, "dpo@example.test", decidedAt)

	assert.Equal(t, StatusApproved, req.Status)
	require.NotNil(t, req.DecidedAt)
	assert.Equal(t, decidedAt, *req.DecidedAt)
	assert.Equal(t, "dpo@example.test", req.DecidedBy)
	assert.True(t, req.IsDecided())
}

func TestCanChangeTier(t *testing.T) {
	t.Run("pending request accepts a new tier", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		require.NoError(t, req.CanChangeTier(TierFullErasure))
		req.ApplyTierChange(TierFullErasure)
		assert.Equal(t, TierFullErasure, req.Tier)
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		err := req.CanChangeTier(Tier("shred"))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("decided request is immutable", func(t *testing.T) {
		req := pendingRequest(TierAnonymise)
		req.ApplyDecision(StatusRejected, "dpo@example.test", time.Now())

		err := req.CanChangeTier(TierFullErasure)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeImmutableAfterDecision))
	})
}

func TestParseTier(t *testing.T) {
	for _, valid := range []string{"anonymise", "anonymise_purge", "full_erasure"} {
		tier, err := ParseTier(valid)
		require.NoError(t, err, valid)
		assert.Equal(t, Tier(valid), tier)
	}

	for _, invalid := range []string{"", "delete", "ANONYMISE"} {
		_, err := ParseTier(invalid)
		require.Error(t, err, "%q must be rejected", invalid)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}
}

func TestParseOutcome(t *testing.T) {
	for _, valid := range []string{"anonymised", "approved", "rejected", "cancelled"} {
		outcome, err := ParseOutcome(valid)
		require.NoError(t, err, valid)
		assert.True(t, outcome.IsTerminal())
	}

	_, err := ParseOutcome("pending")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = ParseOutcome("shredded")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
