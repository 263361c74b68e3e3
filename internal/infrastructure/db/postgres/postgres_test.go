package postgres

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hms/hospital-auth/internal/core/domain"
	"github.com/hms/hospital-auth/internal/core/ports"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	ms, err := LoadMigrations()
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "001_users.sql", ms[0].Name)
	assert.Contains(t, ms[0].SQL, "CREATE TABLE IF NOT EXISTS users")
	assert.Equal(t, 2, ms[1].Version)
	assert.Equal(t, 3, ms[2].Version)
	assert.Contains(t, ms[2].SQL, "username TYPE TEXT")
}

func TestLoadMigrations_OrderAndSkips(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_late.sql":   {Data: []byte("SELECT 10")},
		"m/002_second.sql": {Data: []byte("SELECT 2")},
		"m/notes.sql":      {Data: []byte("ignored")},
		"m/abc_x.sql":      {Data: []byte("ignored")},
		"m/003_x.txt":      {Data: []byte("ignored")},
	}
	ms, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 2, ms[0].Version)
	assert.Equal(t, 10, ms[1].Version)
}

func TestBuildAuditQuery(t *testing.T) {
	q, args := buildAuditQuery(ports.AuditFilter{Limit: 20})
	assert.Equal(t, `SELECT id, user_id, username, event_type, description, ip_address, created_at FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1`, q)
	assert.Equal(t, []any{20}, args)

	q, args = buildAuditQuery(ports.AuditFilter{UserID: "u1", EventType: domain.AuditLoginFailure, Limit: 5})
	assert.Contains(t, q, "WHERE user_id = $1 AND event_type = $2")
	assert.Contains(t, q, "LIMIT $3")
	assert.Equal(t, []any{"u1", "LOGIN_FAILURE", 5}, args)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}
