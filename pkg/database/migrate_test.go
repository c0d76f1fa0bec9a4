package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	names, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])
	assert.IsNonDecreasing(t, names)

	schema, err := migrationsFS.ReadFile("migrations/" + names[0])
	require.NoError(t, err)
	for _, table := range []string{"events", "event_invitees", "event_inviter_groups", "audit_logs", "notifications"} {
		assert.True(t, strings.Contains(string(schema), "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
}
