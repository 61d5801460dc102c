package request

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/erasure/models"
	"custodia/internal/isolation"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/platform/sentinel"
	txcontext "custodia/pkg/platform/tx"
)

const codeUniqueViolation = "23505"

// Postgres implements the request store over the primary database. Code
// assignment happens inside the create transaction; the unique index on code
// is the last line of defense and surfaces as sentinel.ErrConflict for the
// service's bounded retry.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates the store. Construction fails with isolation_violation
// unless erasure requests are classified into the logical store the handle
// belongs to.
func NewPostgres(pool *pgxpool.Pool, logical isolation.Store) (*Postgres, error) {
	resolved, err := isolation.ResolveWrite(isolation.KindErasureRequest, logical)
	if err != nil {
		return nil, err
	}
	if resolved != logical {
		return nil, dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("erasure requests route to the %s store; refusing a %s handle", resolved, logical))
	}
	return &Postgres{pool: pool}, nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) querier(ctx context.Context) querier {
	if tx, ok := txcontext.PgxFrom(ctx); ok {
		return tx
	}
	return s.pool
}

// maxSequenceForYear reads the highest sequence already burned for the year
// across all requests regardless of status.
func maxSequenceForYear(ctx context.Context, q querier, year int) (int, error) {
	var maxSeq int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SPLIT_PART(code, '-', 3) AS INT)), 0)
		FROM erasure_requests
		WHERE code IS NOT NULL AND SPLIT_PART(code, '-', 2) = $1
	`, fmt.Sprintf("%04d", year)).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("read max code sequence for %d: %w", year, err)
	}
	return maxSeq, nil
}

// Create persists a pending request, assigning its code inside the create
// transaction. A concurrent creator that computes the same sequence loses on
// the unique index and gets sentinel.ErrConflict.
func (s *Postgres) Create(ctx context.Context, req *models.ErasureRequest) (*models.ErasureRequest, error) {
	stored := *req
	if stored.RequestedAt.IsZero() {
		stored.RequestedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create request: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if stored.Code.IsZero() {
		maxSeq, err := maxSequenceForYear(ctx, tx, stored.RequestedAt.UTC().Year())
		if err != nil {
			return nil, err
		}
		stored.Code = id.FormatErasureCode(stored.RequestedAt.UTC().Year(), maxSeq+1)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO erasure_requests (id, subject_id, tier, status, code, requested_at, decided_at, decided_by, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(stored.ID), uuid.UUID(stored.SubjectID), string(stored.Tier), string(stored.Status),
		stored.Code.String(), stored.RequestedAt, stored.DecidedAt, stored.DecidedBy, stored.Reason)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("request %s or code %s: %w", stored.ID, stored.Code, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert erasure request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("code %s: %w", stored.Code, sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("commit create request: %w", err)
	}
	out := stored
	return &out, nil
}

// Get returns the request or sentinel.ErrNotFound.
func (s *Postgres) Get(ctx context.Context, requestID id.RequestID) (*models.ErasureRequest, error) {
	row := s.querier(ctx).QueryRow(ctx, `
		SELECT id, subject_id, tier, status, code, requested_at, decided_at, decided_by, reason
		FROM erasure_requests
		WHERE id = $1
	`, uuid.UUID(requestID))
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get erasure request: %w", err)
	}
	return req, nil
}

// List returns matching requests newest first.
func (s *Postgres) List(ctx context.Context, filter models.ListFilter) ([]*models.ErasureRequest, error) {
	query := `
		SELECT id, subject_id, tier, status, code, requested_at, decided_at, decided_by, reason
		FROM erasure_requests
		WHERE 1=1`
	var args []any
	if !filter.SubjectID.IsZero() {
		args = append(args, uuid.UUID(filter.SubjectID))
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY requested_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.querier(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list erasure requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ErasureRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan erasure request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// UpdateTierIfPending swaps the tier with a guard on pending status.
func (s *Postgres) UpdateTierIfPending(ctx context.Context, requestID id.RequestID, tier models.Tier) error {
	tag, err := s.querier(ctx).Exec(ctx, `
		UPDATE erasure_requests SET tier = $2 WHERE id = $1 AND status = $3
	`, uuid.UUID(requestID), string(tier), string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardFailure(ctx, requestID)
	}
	return nil
}

// UpdateStatusFromPending is the decision commit point: an UPDATE guarded on
// status = pending. Exactly one of two concurrent deciders can win.
func (s *Postgres) UpdateStatusFromPending(ctx context.Context, requestID id.RequestID, outcome models.Status, decidedAt time.Time, decidedBy string) error {
	tag, err := s.querier(ctx).Exec(ctx, `
		UPDATE erasure_requests
		SET status = $2, decided_at = $3, decided_by = $4
		WHERE id = $1 AND status = $5
	`, uuid.UUID(requestID), string(outcome), decidedAt.UTC(), decidedBy, string(models.StatusPending))
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardFailure(ctx, requestID)
	}
	return nil
}

// guardFailure distinguishes "no such request" from "guard lost": the caller
// maps the former to not_found and the latter to the terminal-state error.
func (s *Postgres) guardFailure(ctx context.Context, requestID id.RequestID) error {
	var status string
	err := s.querier(ctx).QueryRow(ctx,
		`SELECT status FROM erasure_requests WHERE id = $1`, uuid.UUID(requestID)).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return fmt.Errorf("read request status: %w", err)
	}
	return fmt.Errorf("request %s is %s: %w", requestID, status, sentinel.ErrInvalidState)
}

// ListBackfillCandidates returns historical requests missing a code, or
// approved requests missing a tier, oldest first.
func (s *Postgres) ListBackfillCandidates(ctx context.Context) ([]*models.ErasureRequest, error) {
	rows, err := s.querier(ctx).Query(ctx, `
		SELECT id, subject_id, tier, status, code, requested_at, decided_at, decided_by, reason
		FROM erasure_requests
		WHERE code IS NULL OR (status = 'approved' AND tier = '')
		ORDER BY requested_at ASC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list backfill candidates: %w", err)
	}
	defer rows.Close()

	var out []*models.ErasureRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backfill candidate: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// SetTierIfEmpty assigns a tier only where none is recorded.
func (s *Postgres) SetTierIfEmpty(ctx context.Context, requestID id.RequestID, tier models.Tier) error {
	tag, err := s.querier(ctx).Exec(ctx, `
		UPDATE erasure_requests SET tier = $2 WHERE id = $1 AND tier = ''
	`, uuid.UUID(requestID), string(tier))
	if err != nil {
		return fmt.Errorf("backfill tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already tiered, or gone; re-listing tolerates both, but a missing
		// row is still a fact worth reporting.
		var exists bool
		if err := s.querier(ctx).QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM erasure_requests WHERE id = $1)`, uuid.UUID(requestID)).Scan(&exists); err != nil {
			return fmt.Errorf("check request exists: %w", err)
		}
		if !exists {
			return fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
	}
	return nil
}

// AssignCodeIfMissing gives the request the next code for its year inside a
// transaction holding the row lock. Idempotent: an existing code is returned
// untouched.
func (s *Postgres) AssignCodeIfMissing(ctx context.Context, requestID id.RequestID) (id.ErasureCode, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin assign code: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var (
		existing    *string
		requestedAt time.Time
	)
	err = tx.QueryRow(ctx, `
		SELECT code, requested_at FROM erasure_requests WHERE id = $1 FOR UPDATE
	`, uuid.UUID(requestID)).Scan(&existing, &requestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("request %s: %w", requestID, sentinel.ErrNotFound)
		}
		return "", fmt.Errorf("lock request for code assignment: %w", err)
	}
	if existing != nil && *existing != "" {
		return id.ErasureCode(*existing), nil
	}

	year := requestedAt.UTC().Year()
	maxSeq, err := maxSequenceForYear(ctx, tx, year)
	if err != nil {
		return "", err
	}
	code := id.FormatErasureCode(year, maxSeq+1)

	if _, err := tx.Exec(ctx,
		`UPDATE erasure_requests SET code = $2 WHERE id = $1`, uuid.UUID(requestID), code.String()); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("code %s: %w", code, sentinel.ErrConflict)
		}
		return "", fmt.Errorf("assign code: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("code %s: %w", code, sentinel.ErrConflict)
		}
		return "", fmt.Errorf("commit assign code: %w", err)
	}
	return code, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.ErasureRequest, error) {
	var (
		req       models.ErasureRequest
		rawID     uuid.UUID
		rawSubj   uuid.UUID
		tier      string
		status    string
		code      *string
		decidedAt *time.Time
	)
	if err := row.Scan(&rawID, &rawSubj, &tier, &status, &code, &req.RequestedAt, &decidedAt, &req.DecidedBy, &req.Reason); err != nil {
		return nil, err
	}
	req.ID = id.RequestID(rawID)
	req.SubjectID = id.SubjectID(rawSubj)
	req.Tier = models.Tier(tier)
	req.Status = models.Status(status)
	if code != nil {
		req.Code = id.ErasureCode(*code)
	}
	req.DecidedAt = decidedAt
	return &req, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
