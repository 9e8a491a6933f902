// Package dbtest opens throwaway databases with the production schema.
package dbtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/onhand_api/internal/database"
)

// New returns a migrated SQLite database stored under t.TempDir.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	db, err := database.ConnectSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// PostgresDSNEnv names the variable holding a PostgreSQL test database DSN.
const PostgresDSNEnv = "ONHAND_TEST_POSTGRES_DSN"

// NewPostgres returns the migrated PostgreSQL database named by
// ONHAND_TEST_POSTGRES_DSN with every table emptied. The test is skipped
// when the variable is unset. The database is shared, so callers must not
// run in parallel with each other.
func NewPostgres(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(16)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	_, err = db.Exec(`TRUNCATE feedback, orders, inventory_credentials, products, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}
