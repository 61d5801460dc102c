// Package isolation decides which logical data store each entity kind lives
// in and refuses every operation that would mix the audit store with the
// primary store. The classification is a static compile-time table: adding a
// kind means adding a row here, and an unknown kind always fails closed
// rather than defaulting to the primary store.
package isolation

import (
	"fmt"

	dErrors "custodia/pkg/domain-errors"
)

// Store names a logical data store.
type Store string

const (
	// StorePrimary holds the operational dataset: subjects, their notes,
	// and erasure requests.
	StorePrimary Store = "primary"

	// StoreAudit holds append-only audit events with their own retention
	// and access rules. Nothing in it may reference or join primary rows.
	StoreAudit Store = "audit"
)

// IsValid checks if the store is one of the known logical stores.
func (s Store) IsValid() bool {
	return s == StorePrimary || s == StoreAudit
}

// String returns the string representation.
func (s Store) String() string { return string(s) }

// EntityKind names a persisted entity class.
type EntityKind string

const (
	KindSubject        EntityKind = "subject"
	KindSubjectNote    EntityKind = "subject_note"
	KindErasureRequest EntityKind = "erasure_request"
	KindAuditEvent     EntityKind = "audit_event"
)

// kindStores is the single source of truth for entity placement.
var kindStores = map[EntityKind]Store{
	KindSubject:        StorePrimary,
	KindSubjectNote:    StorePrimary,
	KindErasureRequest: StorePrimary,
	KindAuditEvent:     StoreAudit,
}

// StoreFor returns the classified store for the kind. ok is false for
// unknown kinds; callers must treat that as a refusal, never a default.
func (k EntityKind) StoreFor() (Store, bool) {
	s, ok := kindStores[k]
	return s, ok
}

// String returns the string representation.
func (k EntityKind) String() string { return string(k) }

// ResolveRead returns the store a read of kind must target. Audit-classified
// kinds always resolve to the audit store; everything else resolves to the
// caller's default. Unknown kinds fail closed with isolation_violation.
func ResolveRead(kind EntityKind, def Store) (Store, error) {
	return resolve(kind, def)
}

// ResolveWrite returns the store a write of kind must target. Same rule as
// ResolveRead: classification is symmetric for reads and writes.
func ResolveWrite(kind EntityKind, def Store) (Store, error) {
	return resolve(kind, def)
}

func resolve(kind EntityKind, def Store) (Store, error) {
	classified, ok := kind.StoreFor()
	if !ok {
		return "", dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("unknown entity kind %q: refusing to route", kind)).
			Add("kind", string(kind))
	}
	if classified == StoreAudit {
		return StoreAudit, nil
	}
	if !def.IsValid() {
		return "", dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("unknown default store %q for kind %q", def, kind)).
			Add("kind", string(kind))
	}
	return def, nil
}

// AllowCrossReference permits a stored reference (foreign key or join)
// between two entity kinds only when both live in the same store. The error
// names both sides so schema reviews can quote it directly.
func AllowCrossReference(a, b EntityKind) error {
	storeA, ok := a.StoreFor()
	if !ok {
		return dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("unknown entity kind %q: refusing cross-reference", a))
	}
	storeB, ok := b.StoreFor()
	if !ok {
		return dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("unknown entity kind %q: refusing cross-reference", b))
	}
	if storeA != storeB {
		return dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("cross-store reference %s (%s) -> %s (%s) is not allowed",
				a, storeA, b, storeB)).
			Add("from_kind", string(a)).
			Add("from_store", string(storeA)).
			Add("to_kind", string(b)).
			Add("to_store", string(storeB))
	}
	return nil
}

// AllowSchemaChange permits a migration statement for kind against store only
// when the kind is classified into that store. Migrations route every
// statement through this before applying it.
func AllowSchemaChange(store Store, kind EntityKind) error {
	classified, ok := kind.StoreFor()
	if !ok {
		return dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("unknown entity kind %q: refusing schema change", kind))
	}
	if classified != store {
		return dErrors.New(dErrors.CodeIsolationViolation,
			fmt.Sprintf("schema change for %s belongs to the %s store, not %s",
				kind, classified, store)).
			Add("kind", string(kind)).
			Add("classified", string(classified)).
			Add("target", string(store))
	}
	return nil
}
