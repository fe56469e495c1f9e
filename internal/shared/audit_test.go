package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuditInsertTargetsSchemaColumns(t *testing.T) {
	// audit_logs defines created_at; the statement must name the same
	// column or every insert fails with an undefined-column error.
	require.Contains(t, auditInsertSQL, "created_at")
}

func TestAuditInsertArgsRequireActionEntityID(t *testing.T) {
	for _, log := range []AuditLog{
		{Entity: "account", EntityID: "1"},
		{Action: "coa.create", EntityID: "1"},
		{Action: "coa.create", Entity: "account"},
	} {
		_, err := auditInsertArgs(log)
		require.Error(t, err)
	}
}

func TestAuditInsertArgsZeroTimeBecomesNull(t *testing.T) {
	args, err := auditInsertArgs(AuditLog{
		TenantID: "t1",
		ActorID:  "u1",
		Action:   "daybook.begin",
		Entity:   "business_day",
		EntityID: "7",
	})
	require.NoError(t, err)
	require.Len(t, args, 7)
	require.Nil(t, args[6])

	at := time.Date(2026, 7, 17, 10, 0, 0, 0, time.UTC)
	args, err = auditInsertArgs(AuditLog{
		TenantID: "t1",
		ActorID:  "u1",
		Action:   "daybook.begin",
		Entity:   "business_day",
		EntityID: "7",
		At:       at,
	})
	require.NoError(t, err)
	require.Equal(t, at, args[6])
}
