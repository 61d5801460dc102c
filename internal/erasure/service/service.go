// Package service is the erasure workflow engine. It owns the request
// lifecycle: creation with durable code assignment, tier changes while
// pending, the decision that fires tier-specific destructive side effects
// exactly once, and the one-time historical backfill.
//
// The decision flow is lock → load+validate → status compare-and-set →
// side effects → fail-closed compliance audit. The CAS is the commit point:
// nothing destructive runs for a decision that did not commit, and the
// second of two concurrent deciders observes the terminal state and fails
// with invalid_transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"custodia/internal/erasure/models"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/requestcontext"
)

// maxCodeAttempts bounds create retries on an erasure-code collision. A
// collision indicates a concurrency fault upstream; past the bound it
// surfaces as code_collision, never a silent retry loop.
const maxCodeAttempts = 3

// RequestStore persists erasure requests. Code assignment happens inside
// Create's transaction; status updates are compare-and-set against pending.
type RequestStore interface {
	Create(ctx context.Context, req *models.ErasureRequest) (*models.ErasureRequest, error)
	Get(ctx context.Context, requestID id.RequestID) (*models.ErasureRequest, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.ErasureRequest, error)
	UpdateTierIfPending(ctx context.Context, requestID id.RequestID, tier models.Tier) error
	UpdateStatusFromPending(ctx context.Context, requestID id.RequestID, outcome models.Status, decidedAt time.Time, decidedBy string) error
	ListBackfillCandidates(ctx context.Context) ([]*models.ErasureRequest, error)
	SetTierIfEmpty(ctx context.Context, requestID id.RequestID, tier models.Tier) error
	AssignCodeIfMissing(ctx context.Context, requestID id.RequestID) (id.ErasureCode, error)
}

// SubjectStore is the collaborator that executes destructive side effects on
// the subject record. Each call is atomic from the engine's point of view.
type SubjectStore interface {
	StripPII(ctx context.Context, subjectID id.SubjectID) error
	DeleteNotes(ctx context.Context, subjectID id.SubjectID) error
	DeleteSubjectAndDependents(ctx context.Context, subjectID id.SubjectID) error
	SetAnonymised(ctx context.Context, subjectID id.SubjectID, anonymised bool) error
}

// Recorder writes compliance audit events fail-closed: if the write fails,
// the guarded operation fails with it.
type Recorder interface {
	Record(ctx context.Context, event audit.ComplianceEvent) error
}

// Locker serializes decisions per request.
type Locker interface {
	Acquire(ctx context.Context, requestID id.RequestID) (release func(), err error)
}

// Service is the erasure workflow engine.
type Service struct {
	requests RequestStore
	subjects SubjectStore
	recorder Recorder
	locker   Locker
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the engine. The recorder and locker are mandatory: an
// erasure engine without an audit trail or decision serialization is not a
// configuration, it is a compliance incident.
func New(requests RequestStore, subjects SubjectStore, recorder Recorder, locker Locker, opts ...Option) *Service {
	s := &Service{
		requests: requests,
		subjects: subjects,
		recorder: recorder,
		locker:   locker,
		logger:   slog.Default(),
		tracer:   otel.Tracer("custodia/erasure"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending request and assigns its erasure code. Retries a
// bounded number of times when the code the store computed was taken by a
// concurrent creator; the final collision surfaces as code_collision.
func (s *Service) Create(ctx context.Context, input models.NewRequest) (*models.ErasureRequest, error) {
	ctx, span := s.tracer.Start(ctx, "erasure.Create",
		trace.WithAttributes(attribute.String("erasure.tier", input.Tier.String())))
	defer span.End()

	req, err := models.NewErasureRequest(id.NewRequestID(), input.SubjectID, input.Tier, input.Reason, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	var created *models.ErasureRequest
	for attempt := 1; ; attempt++ {
		created, err = s.requests.Create(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create erasure request")
		}
		s.metrics.IncCodeCollision()
		if attempt >= maxCodeAttempts {
			return nil, dErrors.Wrap(err, dErrors.CodeCollision,
				fmt.Sprintf("erasure code assignment collided %d times", attempt))
		}
		s.logger.WarnContext(ctx, "erasure code collision, retrying",
			"subject_id", req.SubjectID,
			"attempt", attempt,
		)
	}
	span.SetAttributes(attribute.String("erasure.code", created.Code.String()))

	if err := s.recorder.Record(ctx, audit.ComplianceEvent{
		Action:           audit.EventErasureRequested,
		SubjectID:        created.SubjectID.String(),
		ErasureRequestID: created.ID.String(),
		Code:             created.Code.String(),
		Tier:             created.Tier.String(),
		Reason:           created.Reason,
		RequestID:        requestcontext.RequestID(ctx),
		ActorID:          s.actor(ctx),
	}); err != nil {
		return nil, err
	}

	s.metrics.IncCreated(created.Tier.String())
	s.logAudit(ctx, "erasure request created",
		"erasure_request_id", created.ID.String(),
		"code", created.Code.String(),
		"tier", created.Tier.String(),
	)
	return created, nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*models.ErasureRequest, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load erasure request")
	}
	return req, nil
}

// List returns requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.ErasureRequest, error) {
	out, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list erasure requests")
	}
	return out, nil
}

// ChangeTier swaps the tier of a still-pending request. Once the request is
// decided the tier is frozen; the attempt fails with
// immutable_after_decision naming the terminal state.
func (s *Service) ChangeTier(ctx context.Context, requestID id.RequestID, tier models.Tier) (*models.ErasureRequest, error) {
	ctx, span := s.tracer.Start(ctx, "erasure.ChangeTier",
		trace.WithAttributes(attribute.String("erasure.tier", tier.String())))
	defer span.End()

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.CanChangeTier(tier); err != nil {
		return nil, err
	}
	previous := req.Tier

	if err := s.requests.UpdateTierIfPending(ctx, requestID, tier); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			// Decided between our read and the guarded update.
			return nil, s.immutableError(ctx, requestID)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to change tier")
		}
	}

	if err := s.recorder.Record(ctx, audit.ComplianceEvent{
		Action:           audit.EventErasureTierChanged,
		SubjectID:        req.SubjectID.String(),
		ErasureRequestID: req.ID.String(),
		Code:             req.Code.String(),
		Tier:             tier.String(),
		Detail:           fmt.Sprintf("tier changed from %s to %s", previous, tier),
		RequestID:        requestcontext.RequestID(ctx),
		ActorID:          s.actor(ctx),
	}); err != nil {
		return nil, err
	}

	req.ApplyTierChange(tier)
	return req, nil
}

// Decide moves a request out of pending and fires the tier's destructive
// side effects. Side effects are not transactional with the status write: a
// failure after the CAS leaves the request terminal with work outstanding,
// surfaced as an error. Each side-effect step is idempotent, so the caller
// re-checks state and retries rather than assuming a rollback.
func (s *Service) Decide(ctx context.Context, requestID id.RequestID, decision models.Decision) (*models.ErasureRequest, error) {
	ctx, span := s.tracer.Start(ctx, "erasure.Decide",
		trace.WithAttributes(attribute.String("erasure.outcome", decision.Outcome.String())))
	defer span.End()

	release, err := s.locker.Acquire(ctx, requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := req.CanDecide(decision.Outcome); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("erasure.tier", req.Tier.String()),
		attribute.String("erasure.code", req.Code.String()),
	)

	decidedAt := requestcontext.Now(ctx)
	if err := s.requests.UpdateStatusFromPending(ctx, requestID, decision.Outcome, decidedAt, decision.Actor); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "erasure request not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, s.transitionError(ctx, requestID, decision.Outcome)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit decision")
		}
	}

	// Committed. From here every failure surfaces with the request already
	// terminal; retries finish the outstanding side effects.
	req.ApplyDecision(decision.Outcome, decision.Actor, decidedAt)

	if err := s.applySideEffects(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "decision committed but side effects incomplete",
			"erasure_request_id", requestID.String(),
			"outcome", decision.Outcome.String(),
			"error", err,
		)
		return nil, err
	}

	if err := s.recorder.Record(ctx, audit.ComplianceEvent{
		Action:           decisionAction(decision.Outcome),
		SubjectID:        req.SubjectID.String(),
		ErasureRequestID: req.ID.String(),
		Code:             req.Code.String(),
		Tier:             req.Tier.String(),
		Decision:         decision.Outcome.String(),
		Reason:           decision.Reason,
		RequestID:        requestcontext.RequestID(ctx),
		ActorID:          decision.Actor,
	}); err != nil {
		return nil, err
	}

	s.metrics.IncDecided(decision.Outcome.String(), req.Tier.String())
	s.logAudit(ctx, "erasure request decided",
		"erasure_request_id", req.ID.String(),
		"code", req.Code.String(),
		"outcome", decision.Outcome.String(),
		"tier", req.Tier.String(),
		"actor", decision.Actor,
	)
	return req, nil
}

// applySideEffects runs the destructive actions the committed outcome
// implies. Every subject mutation gets its own fail-closed compliance event
// so the trail shows exactly which data was destroyed and when.
func (s *Service) applySideEffects(ctx context.Context, req *models.ErasureRequest) error {
	switch req.Status {
	case models.StatusAnonymised:
		if err := s.subjects.StripPII(ctx, req.SubjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to strip subject PII")
		}
		if err := s.subjects.SetAnonymised(ctx, req.SubjectID, true); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark subject anonymised")
		}
		if err := s.recordSideEffect(ctx, req, audit.EventSubjectAnonymised); err != nil {
			return err
		}
		if req.Tier == models.TierAnonymisePurge {
			if err := s.subjects.DeleteNotes(ctx, req.SubjectID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge subject notes")
			}
			if err := s.recordSideEffect(ctx, req, audit.EventSubjectNotesPurged); err != nil {
				return err
			}
		}
	case models.StatusApproved:
		if err := s.subjects.DeleteSubjectAndDependents(ctx, req.SubjectID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to erase subject")
		}
		if err := s.recordSideEffect(ctx, req, audit.EventSubjectErased); err != nil {
			return err
		}
	case models.StatusRejected, models.StatusCancelled:
		// No subject side effects.
	}
	return nil
}

func (s *Service) recordSideEffect(ctx context.Context, req *models.ErasureRequest, action audit.AuditAction) error {
	return s.recorder.Record(ctx, audit.ComplianceEvent{
		Action:           action,
		SubjectID:        req.SubjectID.String(),
		ErasureRequestID: req.ID.String(),
		Code:             req.Code.String(),
		Tier:             req.Tier.String(),
		RequestID:        requestcontext.RequestID(ctx),
		ActorID:          req.DecidedBy,
	})
}

// transitionError re-reads the request so the invalid_transition error names
// the actual terminal state the concurrent decider committed.
func (s *Service) transitionError(ctx context.Context, requestID id.RequestID, outcome models.Status) error {
	current := "decided"
	if req, err := s.requests.Get(ctx, requestID); err == nil {
		current = req.Status.String()
	}
	return dErrors.New(dErrors.CodeInvalidTransition,
		fmt.Sprintf("cannot transition request %s from %s to %s", requestID, current, outcome)).
		Add("from", current).
		Add("to", outcome.String())
}

func (s *Service) immutableError(ctx context.Context, requestID id.RequestID) error {
	current := "decided"
	if req, err := s.requests.Get(ctx, requestID); err == nil {
		current = req.Status.String()
	}
	return dErrors.New(dErrors.CodeImmutableAfterDecision,
		fmt.Sprintf("tier is immutable after decision: request %s is %s", requestID, current)).
		Add("status", current)
}

func decisionAction(outcome models.Status) audit.AuditAction {
	switch outcome {
	case models.StatusAnonymised:
		return audit.EventErasureAnonymised
	case models.StatusApproved:
		return audit.EventErasureApproved
	case models.StatusRejected:
		return audit.EventErasureRejected
	default:
		return audit.EventErasureCancelled
	}
}

func (s *Service) actor(ctx context.Context) string {
	if actorID := requestcontext.ActorID(ctx); !actorID.IsZero() {
		return actorID.String()
	}
	return ""
}

func (s *Service) logAudit(ctx context.Context, msg string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	attributes = append(attributes, "log_type", "audit")
	s.logger.InfoContext(ctx, msg, attributes...)
}
