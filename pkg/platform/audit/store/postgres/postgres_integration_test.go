//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custodia/internal/isolation"
	"custodia/internal/platform/database"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	auditpg "custodia/pkg/platform/audit/store/postgres"
	"custodia/pkg/testutil/containers"
)

type AuditStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
}

func TestAuditStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	err := database.MigrateAudit(context.Background(), s.postgres.DB)
	s.Require().NoError(err)

	s.store, err = auditpg.New(s.postgres.DB, isolation.StoreAudit)
	s.Require().NoError(err)
}

func (s *AuditStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_events")
	s.Require().NoError(err)
}

func (s *AuditStoreSuite) event(subjectID string, action audit.AuditAction, ts time.Time) audit.Event {
	return audit.Event{
		ID:        id.NewEventID(),
		Category:  action.Category(),
		Timestamp: ts,
		Action:    string(action),
		SubjectID: subjectID,
	}
}

func (s *AuditStoreSuite) TestNew_RefusesPrimaryHandle() {
	_, err := auditpg.New(s.postgres.DB, isolation.StorePrimary)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeIsolationViolation))
}

func (s *AuditStoreSuite) TestAppend_AssignsID() {
	e := s.event("sub-1", audit.EventErasureRequested, time.Now().UTC())
	e.ID = id.EventID{}
	s.Require().NoError(s.store.Append(context.Background(), e))

	stored, err := s.store.ListBySubject(context.Background(), "sub-1", 10)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.False(stored[0].ID.IsZero())
	s.Equal(string(audit.CategoryCompliance), string(stored[0].Category))
}

func (s *AuditStoreSuite) TestAppendWithID_IsIdempotent() {
	e := s.event("sub-1", audit.EventErasureAnonymised, time.Now().UTC())
	s.Require().NoError(s.store.AppendWithID(context.Background(), e))

	dup := e
	dup.Detail = "redelivered"
	s.Require().NoError(s.store.AppendWithID(context.Background(), dup))

	stored, err := s.store.ListBySubject(context.Background(), "sub-1", 10)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Empty(stored[0].Detail)
}

func (s *AuditStoreSuite) TestAppendWithID_RejectsZeroID() {
	e := s.event("sub-1", audit.EventErasureApproved, time.Now().UTC())
	e.ID = id.EventID{}
	err := s.store.AppendWithID(context.Background(), e)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *AuditStoreSuite) TestListBySubject_NewestFirstWithLimit() {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		e := s.event("sub-1", audit.EventErasureTierChanged, base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.store.Append(context.Background(), e))
	}
	s.Require().NoError(s.store.Append(context.Background(),
		s.event("sub-2", audit.EventErasureRequested, base)))

	stored, err := s.store.ListBySubject(context.Background(), "sub-1", 2)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.True(stored[0].Timestamp.After(stored[1].Timestamp))
	s.True(base.Add(3 * time.Minute).Equal(stored[0].Timestamp))
}

func (s *AuditStoreSuite) TestListRecent() {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Append(context.Background(),
		s.event("sub-1", audit.EventErasureRequested, base)))
	s.Require().NoError(s.store.Append(context.Background(),
		s.event("sub-2", audit.EventAccessDenied, base.Add(time.Hour))))

	stored, err := s.store.ListRecent(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal("sub-2", stored[0].SubjectID)
}
