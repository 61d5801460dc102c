package erasure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/erasure/models"
	"custodia/internal/erasure/service"
	"custodia/internal/erasure/store/lock"
	"custodia/internal/erasure/store/request"
	"custodia/internal/platform/middleware"
	"custodia/internal/platform/token"
	"custodia/internal/subject"
	subjectmem "custodia/internal/subject/store/memory"
	httptransport "custodia/internal/transport/http"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/audit"
	auditmem "custodia/pkg/platform/audit/store/memory"
	"custodia/pkg/platform/audit/recorder"
	"custodia/pkg/platform/sentinel"
)

// stack wires the full admin surface the way cmd/server does, on in-memory
// stores: real service, real middleware chain, real token validation.
type stack struct {
	handler  http.Handler
	requests *request.InMemory
	subjects *subjectmem.InMemoryStore
	events   *auditmem.InMemoryStore
	tokens   *token.Service
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	requests := request.NewInMemory()
	subjects := subjectmem.NewInMemoryStore()
	events := auditmem.NewInMemoryStore()
	rec := recorder.New(events, recorder.WithLogger(logger))
	svc := service.New(requests, subjects, rec, lock.NewInProcess(), service.WithLogger(logger))

	tokens := token.NewService("integration-test-key", "custodia", "custodia-admin")
	chain, err := middleware.Build([]string{
		middleware.EntryRequestID,
		middleware.EntryRecovery,
		middleware.EntryRequestTime,
		middleware.EntryContentType,
		middleware.EntryAccessControl,
		middleware.EntryAuditLog,
	}, middleware.Deps{Logger: logger, Validator: tokens, Security: rec})
	require.NoError(t, err)

	router := httptransport.NewRouter(
		httptransport.NewErasureHandler(svc, logger),
		httptransport.NewAuditHandler(events, logger),
		chain,
	)
	return &stack{
		handler:  router.Handler(),
		requests: requests,
		subjects: subjects,
		events:   events,
		tokens:   tokens,
	}
}

func (s *stack) bearer(t *testing.T, actorID id.ActorID, roles ...string) string {
	t.Helper()
	tok, err := s.tokens.Generate(actorID, roles, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *stack) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func seedSubject(t *testing.T, s *stack) id.SubjectID {
	t.Helper()
	subjectID := id.NewSubjectID()
	err := s.subjects.Create(context.Background(), subject.Subject{
		ID:       subjectID,
		FullName: "Dana Hale",
		Email:    "dana.hale@example.com",
		Phone:    "+44 20 7946 0011",
		Notes: []subject.Note{
			{Body: "called about her file"},
			{Body: "follow-up scheduled"},
		},
	})
	require.NoError(t, err)
	return subjectID
}

type requestJSON struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`
	Tier      string `json:"tier"`
	Status    string `json:"status"`
	Code      string `json:"code"`
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason"`
}

type eventJSON struct {
	Category  string `json:"category"`
	Action    string `json:"action"`
	SubjectID string `json:"subject_id"`
	Decision  string `json:"decision"`
	ActorID   string `json:"actor_id"`
}

func TestErasureFlow_AnonymisePurge(t *testing.T) {
	s := newStack(t)
	actorID := id.NewActorID()
	tok := s.bearer(t, actorID, token.RoleCompliance)
	subjectID := seedSubject(t, s)

	rr := s.do(t, http.MethodPost, "/erasure/requests", tok, map[string]string{
		"subject_id": subjectID.String(),
		"tier":       "anonymise_purge",
		"reason":     "subject exercised right to erasure",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[requestJSON](t, rr)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, fmt.Sprintf("ER-%04d-001", time.Now().UTC().Year()), created.Code)

	rr = s.do(t, http.MethodPost, "/erasure/requests/"+created.ID+"/decision", tok, map[string]string{
		"outcome": "anonymised",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	decided := decode[requestJSON](t, rr)
	assert.Equal(t, "anonymised", decided.Status)
	assert.Equal(t, actorID.String(), decided.DecidedBy)

	// The subject survives as an anonymised shell: PII gone, notes purged.
	subj, err := s.subjects.Get(context.Background(), subjectID)
	require.NoError(t, err)
	assert.True(t, subj.IsAnonymised)
	assert.Empty(t, subj.FullName)
	assert.Empty(t, subj.Email)
	assert.Empty(t, subj.Notes)

	// Terminal: a second decision and a tier change are both refused.
	rr = s.do(t, http.MethodPost, "/erasure/requests/"+created.ID+"/decision", tok, map[string]string{
		"outcome": "rejected", "reason": "changed my mind",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr = s.do(t, http.MethodPatch, "/erasure/requests/"+created.ID+"/tier", tok, map[string]string{
		"tier": "anonymise",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	// The compliance trail for the subject records request, decision, and
	// each destructive side effect, attributed to the deciding actor.
	rr = s.do(t, http.MethodGet, "/audit/events?subject="+subjectID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	listed := decode[map[string][]eventJSON](t, rr)

	actions := make(map[string]eventJSON)
	for _, e := range listed["events"] {
		actions[e.Action] = e
	}
	for _, want := range []audit.AuditAction{
		audit.EventErasureRequested,
		audit.EventErasureAnonymised,
		audit.EventSubjectAnonymised,
		audit.EventSubjectNotesPurged,
	} {
		e, ok := actions[string(want)]
		require.True(t, ok, "missing audit action %s", want)
		assert.Equal(t, string(audit.CategoryCompliance), e.Category)
	}
	assert.Equal(t, actorID.String(), actions[string(audit.EventErasureAnonymised)].ActorID)
	assert.Equal(t, "anonymised", actions[string(audit.EventErasureAnonymised)].Decision)
}

func TestErasureFlow_FullErasure(t *testing.T) {
	s := newStack(t)
	tok := s.bearer(t, id.NewActorID(), token.RoleCompliance)
	subjectID := seedSubject(t, s)

	rr := s.do(t, http.MethodPost, "/erasure/requests", tok, map[string]string{
		"subject_id": subjectID.String(),
		"tier":       "anonymise",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[requestJSON](t, rr)

	// Escalate while pending, then approve full erasure.
	rr = s.do(t, http.MethodPatch, "/erasure/requests/"+created.ID+"/tier", tok, map[string]string{
		"tier": "full_erasure",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "full_erasure", decode[requestJSON](t, rr).Tier)

	rr = s.do(t, http.MethodPost, "/erasure/requests/"+created.ID+"/decision", tok, map[string]string{
		"outcome": "approved",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	_, err := s.subjects.Get(context.Background(), subjectID)
	assert.True(t, errors.Is(err, sentinel.ErrNotFound))

	// The request record outlives the subject it erased.
	rr = s.do(t, http.MethodGet, "/erasure/requests/"+created.ID, tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[requestJSON](t, rr)
	assert.Equal(t, "approved", got.Status)
	assert.Equal(t, subjectID.String(), got.SubjectID)
}

func TestErasureFlow_AccessControl(t *testing.T) {
	s := newStack(t)
	subjectID := seedSubject(t, s)

	createBody := map[string]string{
		"subject_id": subjectID.String(),
		"tier":       "anonymise",
	}

	rr := s.do(t, http.MethodPost, "/erasure/requests", "", createBody)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	viewer := s.bearer(t, id.NewActorID(), "viewer")
	rr = s.do(t, http.MethodPost, "/erasure/requests", viewer, createBody)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = s.do(t, http.MethodGet, "/erasure/requests", viewer, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	// Both denials land in the security trail.
	events, err := s.events.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	denied := 0
	for _, e := range events {
		if e.Action == string(audit.EventAccessDenied) {
			denied++
			assert.Equal(t, audit.CategorySecurity, e.Category)
		}
	}
	assert.Equal(t, 2, denied)
}

func TestErasureFlow_Backfill(t *testing.T) {
	s := newStack(t)
	tok := s.bearer(t, id.NewActorID(), token.RoleCompliance)
	subjectID := seedSubject(t, s)

	// A pre-tiering approval: deletion was the only behavior back then, so
	// the backfill must read it as full_erasure.
	decidedAt := time.Date(2021, 3, 9, 10, 0, 0, 0, time.UTC)
	legacy := &models.ErasureRequest{
		ID:          id.NewRequestID(),
		SubjectID:   subjectID,
		Status:      models.StatusApproved,
		Code:        id.FormatErasureCode(2021, 4),
		RequestedAt: decidedAt.Add(-48 * time.Hour),
		DecidedAt:   &decidedAt,
		DecidedBy:   "legacy-admin",
	}
	_, err := s.requests.Create(context.Background(), legacy)
	require.NoError(t, err)

	rr := s.do(t, http.MethodPost, "/admin/backfill", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode[models.BackfillReport](t, rr)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.TiersAssigned)
	assert.Equal(t, 0, report.CodesAssigned)

	rr = s.do(t, http.MethodGet, "/erasure/requests/"+legacy.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "full_erasure", decode[requestJSON](t, rr).Tier)

	// Second run finds nothing left to fix.
	rr = s.do(t, http.MethodPost, "/admin/backfill", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.BackfillReport{}, decode[models.BackfillReport](t, rr))
}
