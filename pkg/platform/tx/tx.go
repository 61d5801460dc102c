// Package tx carries database transactions through context so stores can
// join a caller-opened transaction without widening their interfaces. The
// primary database speaks pgx, the audit database speaks database/sql; each
// has its own carrier and the two never mix.
package tx

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
)

type sqlKey struct{}
type pgxKey struct{}

// WithSQL stores a database/sql transaction in context for downstream store
// usage (audit store).
func WithSQL(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, sqlKey{}, tx)
}

// SQLFrom extracts a database/sql transaction from context if present.
func SQLFrom(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(sqlKey{}).(*sql.Tx)
	return tx, ok
}

// WithPgx stores a pgx transaction in context for downstream store usage
// (primary store).
func WithPgx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, pgxKey{}, tx)
}

// PgxFrom extracts a pgx transaction from context if present.
func PgxFrom(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(pgxKey{}).(pgx.Tx)
	return tx, ok
}
