package postgres

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/toslens/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/toslens?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "toslens", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://u:p@db:6543/toslens?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6543, Database: "toslens", User: "u", Password: "p", SSLMode: "require"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"001_watchlist.sql", "002_audit_log.sql"}, names)
}

func TestAuditListQuery(t *testing.T) {
	q, args := auditListQuery(domain.ListOpts{})
	assert.Equal(t, "SELECT id, event, detail, created_at FROM audit_log ORDER BY created_at DESC, id DESC", q)
	assert.Empty(t, args)

	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	q, args = auditListQuery(domain.ListOpts{Event: "watchlist_add", Since: &since, Limit: 20, Offset: 40})
	assert.Equal(t, "SELECT id, event, detail, created_at FROM audit_log"+
		" WHERE event = $1 AND created_at >= $2"+
		" ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4", q)
	assert.Equal(t, []any{"watchlist_add", since, 20, 40}, args)
}
