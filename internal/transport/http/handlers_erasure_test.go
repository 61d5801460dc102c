package httptransport_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"custodia/internal/erasure/models"
	httptransport "custodia/internal/transport/http"
	"custodia/internal/transport/http/mocks"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/testutil"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newErasureRouter(t *testing.T) (*mocks.MockErasureService, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockErasureService(ctrl)
	r := chi.NewRouter()
	httptransport.NewErasureHandler(svc, newLogger()).Register(r)
	return svc, r
}

func sampleRequest() *models.ErasureRequest {
	return &models.ErasureRequest{
		ID:          id.NewRequestID(),
		SubjectID:   id.NewSubjectID(),
		Tier:        models.TierAnonymise,
		Status:      models.StatusPending,
		Code:        id.FormatErasureCode(2026, 14),
		RequestedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Reason:      "subject request",
	}
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreate(t *testing.T) {
	t.Run("creates and returns the coded request", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		created := sampleRequest()

		svc.EXPECT().
			Create(gomock.Any(), models.NewRequest{
				SubjectID: created.SubjectID,
				Tier:      models.TierAnonymise,
				Reason:    "subject request",
			}).
			Return(created, nil)

		rec := doJSON(t, r, http.MethodPost, "/erasure/requests",
			`{"subject_id":"`+created.SubjectID.String()+`","tier":"anonymise","reason":"subject request"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, created.Code.String(), resp["code"])
		assert.Equal(t, "pending", resp["status"])
	})

	t.Run("rejects a malformed subject id without calling the service", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodPost, "/erasure/requests",
			`{"subject_id":"not-a-uuid","tier":"anonymise"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an unknown tier", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodPost, "/erasure/requests",
			`{"subject_id":"`+id.NewSubjectID().String()+`","tier":"shred"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "validation_error")
	})

	t.Run("maps an exhausted code retry to conflict", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		svc.EXPECT().
			Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeCollision, "erasure code collision"))

		rec := doJSON(t, r, http.MethodPost, "/erasure/requests",
			`{"subject_id":"`+id.NewSubjectID().String()+`","tier":"anonymise"}`)
		testutil.RequireCodedError(t, rec, http.StatusConflict, "code_collision")
	})
}

func TestHandleGet(t *testing.T) {
	t.Run("returns the request", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		req := sampleRequest()
		svc.EXPECT().Get(gomock.Any(), req.ID).Return(req, nil)

		rec := doJSON(t, r, http.MethodGet, "/erasure/requests/"+req.ID.String(), "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), req.Code.String())
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodGet, "/erasure/requests/nope", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps not_found to 404", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		requestID := id.NewRequestID()
		svc.EXPECT().Get(gomock.Any(), requestID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found"))

		rec := doJSON(t, r, http.MethodGet, "/erasure/requests/"+requestID.String(), "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleList(t *testing.T) {
	t.Run("passes filters through", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		subjectID := id.NewSubjectID()
		svc.EXPECT().
			List(gomock.Any(), models.ListFilter{
				SubjectID: subjectID,
				Status:    models.StatusPending,
				Limit:     5,
			}).
			Return([]*models.ErasureRequest{sampleRequest()}, nil)

		rec := doJSON(t, r, http.MethodGet,
			"/erasure/requests?subject="+subjectID.String()+"&status=pending&limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Requests []json.RawMessage `json:"requests"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp.Requests, 1)
	})

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodGet, "/erasure/requests?status=limbo", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty result is an empty list, not null", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		svc.EXPECT().List(gomock.Any(), models.ListFilter{}).Return(nil, nil)

		rec := doJSON(t, r, http.MethodGet, "/erasure/requests", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"requests":[]`)
	})
}

func TestHandleChangeTier(t *testing.T) {
	t.Run("changes the tier while pending", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		req := sampleRequest()
		req.Tier = models.TierFullErasure
		svc.EXPECT().
			ChangeTier(gomock.Any(), req.ID, models.TierFullErasure).
			Return(req, nil)

		rec := doJSON(t, r, http.MethodPatch, "/erasure/requests/"+req.ID.String()+"/tier",
			`{"tier":"full_erasure"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "full_erasure")
	})

	t.Run("maps immutability to 409", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		requestID := id.NewRequestID()
		svc.EXPECT().
			ChangeTier(gomock.Any(), requestID, models.TierAnonymise).
			Return(nil, dErrors.New(dErrors.CodeImmutableAfterDecision, "tier is immutable after decision"))

		rec := doJSON(t, r, http.MethodPatch, "/erasure/requests/"+requestID.String()+"/tier",
			`{"tier":"anonymise"}`)
		testutil.RequireCodedError(t, rec, http.StatusConflict, "immutable_after_decision")
	})
}

func TestHandleDecide(t *testing.T) {
	t.Run("approves a full erasure", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		req := sampleRequest()
		req.Tier = models.TierFullErasure
		req.Status = models.StatusApproved
		svc.EXPECT().
			Decide(gomock.Any(), req.ID, models.Decision{
				Outcome: models.StatusApproved,
				Reason:  "verified identity",
			}).
			Return(req, nil)

		rec := doJSON(t, r, http.MethodPost, "/erasure/requests/"+req.ID.String()+"/decision",
			`{"outcome":"approved","reason":"verified identity"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "approved")
	})

	t.Run("attributes the decision to the authenticated actor", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		req := sampleRequest()
		req.Status = models.StatusAnonymised
		actorID := id.NewActorID()
		svc.EXPECT().
			Decide(gomock.Any(), req.ID, models.Decision{
				Outcome: models.StatusAnonymised,
				Actor:   actorID.String(),
			}).
			Return(req, nil)

		httpReq := testutil.NewJSONRequest(t, http.MethodPost,
			"/erasure/requests/"+req.ID.String()+"/decision",
			map[string]string{"outcome": "anonymised"})
		httpReq = testutil.WithActor(httpReq, actorID.String(), "compliance")

		rec := testutil.Do(r, httpReq)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "anonymised", testutil.DecodeJSON[map[string]any](t, rec)["status"])
	})

	t.Run("pending is not a decision outcome", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodPost, "/erasure/requests/"+id.NewRequestID().String()+"/decision",
			`{"outcome":"pending"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejection without a reason is refused", func(t *testing.T) {
		_, r := newErasureRouter(t)
		rec := doJSON(t, r, http.MethodPost, "/erasure/requests/"+id.NewRequestID().String()+"/decision",
			`{"outcome":"rejected"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("maps a lost race to 409", func(t *testing.T) {
		svc, r := newErasureRouter(t)
		requestID := id.NewRequestID()
		svc.EXPECT().
			Decide(gomock.Any(), requestID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidTransition, "cannot transition from approved to rejected"))

		rec := doJSON(t, r, http.MethodPost, "/erasure/requests/"+requestID.String()+"/decision",
			`{"outcome":"rejected","reason":"dup"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_transition")
	})
}

func TestHandleBackfill(t *testing.T) {
	svc, r := newErasureRouter(t)
	svc.EXPECT().Backfill(gomock.Any()).
		Return(models.BackfillReport{Scanned: 3, TiersAssigned: 1, CodesAssigned: 3}, nil)

	rec := doJSON(t, r, http.MethodPost, "/admin/backfill", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.BackfillReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 1, report.TiersAssigned)
	assert.Equal(t, 3, report.CodesAssigned)
}
