package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"custodia/internal/isolation"
	id "custodia/pkg/domain"
	dErrors "custodia/pkg/domain-errors"
	audit "custodia/pkg/platform/audit"
	txcontext "custodia/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store over the dedicated audit database. It is
// append-only by construction: the type exposes no update or delete, and the
// audit schema carries no foreign keys into primary-store tables.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store. The caller states which logical store
// the handle belongs to; construction fails with isolation_violation unless
// audit events route there, so an audit store can never sit on the primary
// database connection.
func New(db *sql.DB, logical isolation.Store) (*Store, error) {
	resolved, err := isolation.ResolveWrite(isolation.KindAuditEvent, logical)
	if err != nil {
		return nil, err
	}
	if resolved != logical {
		return nil, dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("audit events route to the %s store; refusing a %s handle", resolved, logical))
	}
	return &Store{db: db}, nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execer joins a caller-opened audit-database transaction when one travels in
// the context (batch ingest), otherwise uses the pool.
func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.SQLFrom(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an audit event, assigning a fresh ID when none is set.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID.IsZero() {
		event.ID = id.NewEventID()
	}
	return s.insert(ctx, event, false)
}

// AppendWithID writes an audit event under its existing ID. Idempotent:
// duplicate inserts are ignored via ON CONFLICT DO NOTHING, so the ingest
// consumer can redeliver safely.
func (s *Store) AppendWithID(ctx context.Context, event audit.Event) error {
	if event.ID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "event id is required for idempotent append")
	}
	return s.insert(ctx, event, true)
}

func (s *Store) insert(ctx context.Context, event audit.Event, idempotent bool) error {
	query := `
		INSERT INTO audit_events (
			id, category, timestamp, action, subject_id, erasure_request_id,
			code, tier, decision, reason, actor_id, ip, request_id, detail
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if idempotent {
		query += ` ON CONFLICT (id) DO NOTHING`
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		string(event.Category),
		event.Timestamp,
		event.Action,
		event.SubjectID,
		event.ErasureRequestID,
		event.Code,
		event.Tier,
		event.Decision,
		event.Reason,
		event.ActorID,
		event.IP,
		event.RequestID,
		event.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a specific data subject, newest first.
func (s *Store) ListBySubject(ctx context.Context, subjectID string, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, subject_id, erasure_request_id,
			   code, tier, decision, reason, actor_id, ip, request_id, detail
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT id, category, timestamp, action, subject_id, erasure_request_id,
			   code, tier, decision, reason, actor_id, ip, request_id, detail
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return s.scanEvents(rows)
}

// scanEvents scans multiple rows into an audit.Event slice.
func (s *Store) scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			category string
		)

		err := rows.Scan(
			&eventID,
			&category,
			&event.Timestamp,
			&event.Action,
			&event.SubjectID,
			&event.ErasureRequestID,
			&event.Code,
			&event.Tier,
			&event.Decision,
			&event.Reason,
			&event.ActorID,
			&event.IP,
			&event.RequestID,
			&event.Detail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.ID = id.EventID(eventID)
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
