package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	appconfig "github.com/GTDGit/onhand_api/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema migrations matching the connection's driver.
func Migrate(db *sqlx.DB) error {
	var (
		driver migratedb.Driver
		dir    string
		err    error
	)

	switch db.DriverName() {
	case appconfig.DriverSQLite:
		dir = "migrations/sqlite"
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	default:
		dir = "migrations/postgres"
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	// m.Close would close the shared *sql.DB, so only the source is released.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}
