package audit

import "context"

// Store is the persistence contract for audit events. Implementations are
// append-only: no update or delete operation exists at any layer above the
// retention job in the audit database itself.
type Store interface {
	// Append persists an event, assigning a fresh ID when the event carries
	// none. Used by the fail-closed recorder.
	Append(ctx context.Context, event Event) error

	// AppendWithID persists an event under its existing ID, idempotently:
	// a second append with the same ID is a no-op. Used by the ingest
	// consumer, which may redeliver.
	AppendWithID(ctx context.Context, event Event) error

	// ListBySubject returns events concerning a data subject, newest first.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]Event, error)

	// ListRecent returns the most recent events across all subjects.
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
