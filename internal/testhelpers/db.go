// Package testhelpers provides a migrated sqlite database and event fixtures
// for package tests.
package testhelpers

import (
	"database/sql"
	"path/filepath"
	"testing"

	"demo-ingest/internal/database"
	"demo-ingest/internal/db"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a fresh sqlite file under t.TempDir with all migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := database.Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

// NewTestQueries is NewTestDB plus the query layer bound to it.
func NewTestQueries(t *testing.T) (*sql.DB, *db.Queries) {
	t.Helper()
	sqlDB := NewTestDB(t)
	return sqlDB, db.New(sqlDB)
}
