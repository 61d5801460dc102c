// Package request persists erasure requests. The postgres store is the
// production implementation; InMemory backs tests and single-process
// deployments with the same observable semantics, including code assignment
// under the store's mutual exclusion and compare-and-set status updates.
package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"custodia/internal/erasure/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps erasure requests in process memory.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.ErasureRequest
	codes    map[id.ErasureCode]struct{}
}

// NewInMemory creates an empty in-memory request store.
func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.RequestID]*models.ErasureRequest),
		codes:    make(map[id.ErasureCode]struct{}),
	}
}

// Create persists a pending request, assigning its erasure code under the
// store lock the way the postgres store assigns it inside the create
// transaction. A request arriving with a code keeps it; a taken code is
// sentinel.ErrConflict for the service to retry.
func (s *InMemory) Create(ctx context.Context, req *models.ErasureRequest) (*models.ErasureRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return nil, fmt.Errorf("request %s: %w", req.ID, sentinel.ErrConflict)
	}

	stored := *req
	if stored.RequestedAt.IsZero() {
		stored.RequestedAt = time.Now().UTC()
	}
	if stored.Code.IsZero() {
		stored.Code = s.nextCodeLocked(stored.RequestedAt.UTC().Year())
	}
	if _, taken := s.codes[stored.Code]; taken {
		return nil, fmt.Errorf("code %s: %w", stored.Code, sentinel.ErrConflict)
	}

	s.codes[stored.Code] = struct{}{}
	s.requests[stored.ID] = &stored

	out := stored
	return &out, nil
}

// Get returns the request or sentinel.ErrNotFound.
func (s *InMemory) Get(ctx context.Context, requestID id.RequestID) (*models.ErasureRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	out := *req
	return &out, nil
}

// List returns matching requests newest first.
func (s *InMemory) List(ctx context.Context, filter models.ListFilter) ([]*models.ErasureRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ErasureRequest
	for _, req := range s.requests {
		if !filter.SubjectID.IsZero() && req.SubjectID != filter.SubjectID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.After(out[j].RequestedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateTierIfPending swaps the tier only while the request is pending.
// Returns sentinel.ErrInvalidState when the request has already been
// decided, so the caller can re-read and name the terminal state.
func (s *InMemory) UpdateTierIfPending(ctx context.Context, requestID id.RequestID, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Status != models.StatusPending {
		return fmt.Errorf("request %s is %s: %w", requestID, req.Status, sentinel.ErrInvalidState)
	}
	req.Tier = tier
	return nil
}

// UpdateStatusFromPending is the decision commit point: a guarded swap that
// succeeds only while the request is still pending. The second of two
// concurrent deciders gets sentinel.ErrInvalidState.
func (s *InMemory) UpdateStatusFromPending(ctx context.Context, requestID id.RequestID, outcome models.Status, decidedAt time.Time, decidedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Status != models.StatusPending {
		return fmt.Errorf("request %s is %s: %w", requestID, req.Status, sentinel.ErrInvalidState)
	}

	req.Status = outcome
	t := decidedAt.UTC()
	req.DecidedAt = &t
	req.DecidedBy = decidedBy
	return nil
}

// ListBackfillCandidates returns requests missing a code, or approved
// requests missing a tier, oldest first so backfilled codes rise with
// request age.
func (s *InMemory) ListBackfillCandidates(ctx context.Context) ([]*models.ErasureRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ErasureRequest
	for _, req := range s.requests {
		if req.Code.IsZero() || (req.Status == models.StatusApproved && req.Tier == "") {
			cp := *req
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// SetTierIfEmpty assigns a tier only where none is recorded. A request that
// already carries a tier, or no longer exists, is left alone: the backfill
// re-lists candidates and tolerates both.
func (s *InMemory) SetTierIfEmpty(ctx context.Context, requestID id.RequestID, tier models.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if req.Tier != "" {
		return nil
	}
	req.Tier = tier
	return nil
}

// AssignCodeIfMissing gives the request the next code for its year.
// Idempotent: an existing code is returned untouched.
func (s *InMemory) AssignCodeIfMissing(ctx context.Context, requestID id.RequestID) (id.ErasureCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return "", fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
	}
	if !req.Code.IsZero() {
		return req.Code, nil
	}

	code := s.nextCodeLocked(req.RequestedAt.UTC().Year())
	if _, taken := s.codes[code]; taken {
		return "", fmt.Errorf("code %s: %w", code, sentinel.ErrConflict)
	}
	s.codes[code] = struct{}{}
	req.Code = code
	return code, nil
}

// Clear removes all requests. Test helper.
func (s *InMemory) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = make(map[id.RequestID]*models.ErasureRequest)
	s.codes = make(map[id.ErasureCode]struct{})
}

// nextCodeLocked computes max sequence already burned for the year across
// all requests regardless of status, plus one. Callers hold s.mu.
func (s *InMemory) nextCodeLocked(year int) id.ErasureCode {
	maxSeq := 0
	for code := range s.codes {
		if code.Year() == year && code.Sequence() > maxSeq {
			maxSeq = code.Sequence()
		}
	}
	return id.FormatErasureCode(year, maxSeq+1)
}
