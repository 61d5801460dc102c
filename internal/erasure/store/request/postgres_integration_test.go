//go:build integration

package request_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/erasure/models"
	"custodia/internal/erasure/store/request"
	"custodia/internal/isolation"
	"custodia/internal/platform/database"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *request.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	err := database.MigratePrimary(context.Background(), s.postgres.Pool)
	s.Require().NoError(err)

	s.store, err = request.NewPostgres(s.postgres.Pool, isolation.StorePrimary)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "erasure_requests")
	s.Require().NoError(err)
}

func pendingRequest(requestedAt time.Time) *models.ErasureRequest {
	req, err := models.NewErasureRequest(id.NewRequestID(), id.NewSubjectID(), models.TierAnonymise, "subject request", requestedAt)
	if err != nil {
		panic(err)
	}
	return req
}

// insertRaw bypasses the store to plant historical rows the way an import
// would: no code, possibly no tier.
func (s *PostgresStoreSuite) insertRaw(req *models.ErasureRequest) {
	var code *string
	if !req.Code.IsZero() {
		c := req.Code.String()
		code = &c
	}
	_, err := s.postgres.Pool.Exec(context.Background(), `
		INSERT INTO erasure_requests (id, subject_id, tier, status, code, requested_at, decided_at, decided_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(req.ID), uuid.UUID(req.SubjectID), string(req.Tier), string(req.Status),
		code, req.RequestedAt, req.DecidedAt, req.DecidedBy, req.Reason)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCreateAssignsSequentialCodes() {
	ctx := context.Background()
	year := time.Now().UTC().Year()

	first, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(year, 1), first.Code)

	second, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(year, 2), second.Code)
}

// TestConcurrentCreateUniqueCodes races many creators; whoever loses the
// unique index gets ErrConflict, and no code is ever issued twice. The caller
// retries on conflict, so the property that matters here is uniqueness, not
// that every attempt succeeds first try.
func (s *PostgresStoreSuite) TestConcurrentCreateUniqueCodes() {
	ctx := context.Background()
	const goroutines = 30

	var wg sync.WaitGroup
	var conflicts atomic.Int32
	codes := make(chan id.ErasureCode, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.store.Create(ctx, pendingRequest(time.Now()))
			if err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					conflicts.Add(1)
					return
				}
				s.T().Errorf("unexpected create error: %v", err)
				return
			}
			codes <- created.Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[id.ErasureCode]struct{})
	for code := range codes {
		_, dup := seen[code]
		s.False(dup, "code %s issued twice", code)
		seen[code] = struct{}{}
	}
	s.Equal(goroutines, len(seen)+int(conflicts.Load()), "every creator either got a unique code or a conflict")
	s.NotEmpty(seen)
}

// TestDecisionSingleWinner races two deciders on one pending request; the
// status guard lets exactly one through.
func (s *PostgresStoreSuite) TestDecisionSingleWinner() {
	ctx := context.Background()

	created, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)

	const deciders = 10
	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.UpdateStatusFromPending(ctx, created.ID, models.StatusAnonymised, time.Now(), "officer-1")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrInvalidState):
				losses.Add(1)
			default:
				s.T().Errorf("unexpected decision error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(deciders-1), losses.Load())

	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAnonymised, got.Status)
	s.Equal("officer-1", got.DecidedBy)
	s.Require().NotNil(got.DecidedAt)
}

func (s *PostgresStoreSuite) TestUpdateTierGuards() {
	ctx := context.Background()

	created, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)

	err = s.store.UpdateTierIfPending(ctx, created.ID, models.TierAnonymisePurge)
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.TierAnonymisePurge, got.Tier)

	err = s.store.UpdateStatusFromPending(ctx, created.ID, models.StatusRejected, time.Now(), "officer-2")
	s.Require().NoError(err)

	err = s.store.UpdateTierIfPending(ctx, created.ID, models.TierFullErasure)
	s.ErrorIs(err, sentinel.ErrInvalidState)

	err = s.store.UpdateTierIfPending(ctx, id.NewRequestID(), models.TierFullErasure)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestNewCodesContinuePastExisting plants a historical row carrying sequence
// 5; fresh creates continue at 6 and 7 regardless of the gap below.
func (s *PostgresStoreSuite) TestNewCodesContinuePastExisting() {
	ctx := context.Background()
	year := time.Now().UTC().Year()

	seeded := pendingRequest(time.Now())
	seeded.Code = id.FormatErasureCode(year, 5)
	s.insertRaw(seeded)

	first, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(year, 6), first.Code)

	second, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(year, 7), second.Code)
}

func (s *PostgresStoreSuite) TestBackfill() {
	ctx := context.Background()
	decidedAt := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	// Approved without tier or code, mid-2024.
	legacyApproved := pendingRequest(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	legacyApproved.Tier = ""
	legacyApproved.Status = models.StatusApproved
	legacyApproved.Code = ""
	legacyApproved.DecidedAt = &decidedAt
	legacyApproved.DecidedBy = "legacy-import"
	s.insertRaw(legacyApproved)

	// Rejected without code, early 2024: oldest, so it takes the year's first
	// backfilled code.
	legacyRejected := pendingRequest(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	legacyRejected.Status = models.StatusRejected
	legacyRejected.Code = ""
	s.insertRaw(legacyRejected)

	candidates, err := s.store.ListBackfillCandidates(ctx)
	s.Require().NoError(err)
	s.Require().Len(candidates, 2)
	s.Equal(legacyRejected.ID, candidates[0].ID, "oldest first")
	s.Equal(legacyApproved.ID, candidates[1].ID)

	err = s.store.SetTierIfEmpty(ctx, legacyApproved.ID, models.TierFullErasure)
	s.Require().NoError(err)

	code, err := s.store.AssignCodeIfMissing(ctx, legacyRejected.ID)
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(2024, 1), code)

	code, err = s.store.AssignCodeIfMissing(ctx, legacyApproved.ID)
	s.Require().NoError(err)
	s.Equal(id.FormatErasureCode(2024, 2), code)

	// Second assignment is a no-op returning the recorded code.
	again, err := s.store.AssignCodeIfMissing(ctx, legacyApproved.ID)
	s.Require().NoError(err)
	s.Equal(code, again)

	got, err := s.store.Get(ctx, legacyApproved.ID)
	s.Require().NoError(err)
	s.Equal(models.TierFullErasure, got.Tier)

	candidates, err = s.store.ListBackfillCandidates(ctx)
	s.Require().NoError(err)
	s.Empty(candidates, "second run has nothing left to do")
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()

	subjectID := id.NewSubjectID()
	for i := 0; i < 3; i++ {
		req := pendingRequest(time.Now().Add(time.Duration(i) * time.Second))
		req.SubjectID = subjectID
		_, err := s.store.Create(ctx, req)
		s.Require().NoError(err)
	}
	other, err := s.store.Create(ctx, pendingRequest(time.Now()))
	s.Require().NoError(err)
	err = s.store.UpdateStatusFromPending(ctx, other.ID, models.StatusRejected, time.Now(), "officer-3")
	s.Require().NoError(err)

	bySubject, err := s.store.List(ctx, models.ListFilter{SubjectID: subjectID})
	s.Require().NoError(err)
	s.Len(bySubject, 3)
	for i := 1; i < len(bySubject); i++ {
		s.False(bySubject[i-1].RequestedAt.Before(bySubject[i].RequestedAt), "newest first")
	}

	rejected, err := s.store.List(ctx, models.ListFilter{Status: models.StatusRejected})
	s.Require().NoError(err)
	s.Require().Len(rejected, 1)
	s.Equal(other.ID, rejected[0].ID)

	limited, err := s.store.List(ctx, models.ListFilter{Limit: 2})
	s.Require().NoError(err)
	s.Len(limited, 2)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, id.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.AssignCodeIfMissing(ctx, id.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestRefusesAuditHandle() {
	_, err := request.NewPostgres(s.postgres.Pool, isolation.StoreAudit)
	s.Require().Error(err)
	s.Contains(err.Error(), fmt.Sprintf("the %s store", isolation.StorePrimary))
}
