package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/isolation"
	dErrors "custodia/pkg/domain-errors"
)

func TestSchemas_RouteToTheirOwnStore(t *testing.T) {
	require.NoError(t, validateSchema(isolation.StorePrimary, primarySchema))
	require.NoError(t, validateSchema(isolation.StoreAudit, auditSchema))
}

func TestSchemas_MisroutedStatementRefused(t *testing.T) {
	err := validateSchema(isolation.StoreAudit, primarySchema)
	require.Error(t, err, "primary tables must not be created on the audit store")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIsolationViolation))

	err = validateSchema(isolation.StorePrimary, auditSchema)
	require.Error(t, err, "audit tables must not be created on the primary store")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIsolationViolation))
}

func TestSchemas_CoverEveryClassifiedKind(t *testing.T) {
	seen := map[isolation.EntityKind]bool{}
	for _, stmt := range primarySchema {
		seen[stmt.Kind] = true
	}
	for _, stmt := range auditSchema {
		seen[stmt.Kind] = true
	}

	for _, kind := range []isolation.EntityKind{
		isolation.KindSubject,
		isolation.KindSubjectNote,
		isolation.KindErasureRequest,
		isolation.KindAuditEvent,
	} {
		assert.True(t, seen[kind], "no DDL for entity kind %s", kind)
	}
}
