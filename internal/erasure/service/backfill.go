package service

import (
	"context"
	"errors"
	"fmt"

	"custodia/internal/erasure/models"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// Backfill brings historical requests into conformance with the tiered data
// model, once. Candidates are processed oldest first so assigned codes rise
// monotonically with request age. Any approved request without a tier becomes
// full_erasure: deletion was the only behavior that existed before tiering,
// so that reading preserves historical meaning. Rejected and cancelled
// requests get codes but no inferred tier.
//
// Idempotent: a second run finds no candidates and reports zeros.
func (s *Service) Backfill(ctx context.Context) (models.BackfillReport, error) {
	ctx, span := s.tracer.Start(ctx, "erasure.Backfill")
	defer span.End()

	candidates, err := s.requests.ListBackfillCandidates(ctx)
	if err != nil {
		return models.BackfillReport{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list backfill candidates")
	}

	report := models.BackfillReport{Scanned: len(candidates)}
	for _, req := range candidates {
		touched := false

		if req.Status == models.StatusApproved && req.Tier == "" {
			if err := s.requests.SetTierIfEmpty(ctx, req.ID, models.TierFullErasure); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					continue
				}
				return report, dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("failed to backfill tier for request %s", req.ID))
			}
			req.Tier = models.TierFullErasure
			report.TiersAssigned++
			touched = true
		}

		if req.Code.IsZero() {
			code, err := s.requests.AssignCodeIfMissing(ctx, req.ID)
			if err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					continue
				}
				if errors.Is(err, sentinel.ErrConflict) {
					return report, dErrors.Wrap(err, dErrors.CodeCollision,
						fmt.Sprintf("backfill code assignment collided for request %s", req.ID))
				}
				return report, dErrors.Wrap(err, dErrors.CodeInternal,
					fmt.Sprintf("failed to backfill code for request %s", req.ID))
			}
			req.Code = code
			report.CodesAssigned++
			touched = true
		}

		if !touched {
			continue
		}
		if err := s.recorder.Record(ctx, audit.ComplianceEvent{
			Action:           audit.EventErasureBackfilled,
			SubjectID:        req.SubjectID.String(),
			ErasureRequestID: req.ID.String(),
			Code:             req.Code.String(),
			Tier:             req.Tier.String(),
			RequestID:        requestcontext.RequestID(ctx),
		}); err != nil {
			return report, err
		}
	}

	s.metrics.IncBackfillRun()
	s.logAudit(ctx, "erasure backfill completed",
		"scanned", report.Scanned,
		"tiers_assigned", report.TiersAssigned,
		"codes_assigned", report.CodesAssigned,
	)
	return report, nil
}
