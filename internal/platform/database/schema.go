package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/isolation"
)

// Statement is one idempotent DDL statement tagged with the entity kind it
// belongs to, so the isolation router can veto a statement aimed at the
// wrong physical store.
type Statement struct {
	Kind isolation.EntityKind
	SQL  string
}

var primarySchema = []Statement{
	{
		Kind: isolation.KindSubject,
		SQL: `CREATE TABLE IF NOT EXISTS subjects (
			id UUID PRIMARY KEY,
			full_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			date_of_birth TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			is_anonymised BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Kind: isolation.KindSubjectNote,
		SQL: `CREATE TABLE IF NOT EXISTS subject_notes (
			id UUID PRIMARY KEY,
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	},
	{
		Kind: isolation.KindSubjectNote,
		SQL:  `CREATE INDEX IF NOT EXISTS idx_subject_notes_subject ON subject_notes (subject_id)`,
	},
	{
		// No foreign key on subject_id: the request record must outlive the
		// subject row after a full erasure.
		Kind: isolation.KindErasureRequest,
		SQL: `CREATE TABLE IF NOT EXISTS erasure_requests (
			id UUID PRIMARY KEY,
			subject_id UUID NOT NULL,
			tier TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			code TEXT,
			requested_at TIMESTAMPTZ NOT NULL,
			decided_at TIMESTAMPTZ,
			decided_by TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT ''
		)`,
	},
	{
		// Last line of defense for code uniqueness; NULL codes (historical
		// rows awaiting backfill) are exempt.
		Kind: isolation.KindErasureRequest,
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_erasure_requests_code ON erasure_requests (code) WHERE code IS NOT NULL`,
	},
	{
		Kind: isolation.KindErasureRequest,
		SQL:  `CREATE INDEX IF NOT EXISTS idx_erasure_requests_subject ON erasure_requests (subject_id)`,
	},
	{
		Kind: isolation.KindErasureRequest,
		SQL:  `CREATE INDEX IF NOT EXISTS idx_erasure_requests_status ON erasure_requests (status)`,
	},
}

var auditSchema = []Statement{
	{
		Kind: isolation.KindAuditEvent,
		SQL: `CREATE TABLE IF NOT EXISTS audit_events (
			id UUID PRIMARY KEY,
			category TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			action TEXT NOT NULL,
			subject_id TEXT NOT NULL DEFAULT '',
			erasure_request_id TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL DEFAULT '',
			decision TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL DEFAULT '',
			ip TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		)`,
	},
	{
		Kind: isolation.KindAuditEvent,
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_events_subject ON audit_events (subject_id)`,
	},
	{
		Kind: isolation.KindAuditEvent,
		SQL:  `CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp DESC)`,
	},
}

// validateSchema refuses any statement whose entity kind does not belong to
// the target store.
func validateSchema(store isolation.Store, statements []Statement) error {
	for _, stmt := range statements {
		if err := isolation.AllowSchemaChange(store, stmt.Kind); err != nil {
			return err
		}
	}
	return nil
}

// MigratePrimary applies the primary-store schema.
func MigratePrimary(ctx context.Context, pool *pgxpool.Pool) error {
	if err := validateSchema(isolation.StorePrimary, primarySchema); err != nil {
		return err
	}
	for _, stmt := range primarySchema {
		if _, err := pool.Exec(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("apply primary schema for %s: %w", stmt.Kind, err)
		}
	}
	return nil
}

// MigrateAudit applies the audit-store schema.
func MigrateAudit(ctx context.Context, db *sql.DB) error {
	if err := validateSchema(isolation.StoreAudit, auditSchema); err != nil {
		return err
	}
	for _, stmt := range auditSchema {
		if _, err := db.ExecContext(ctx, stmt.SQL); err != nil {
			return fmt.Errorf("apply audit schema for %s: %w", stmt.Kind, err)
		}
	}
	return nil
}
