package modelcache

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrateUp applies all pending migrations embedded under migrations/ via
// a connection dedicated to the migration run. golang-migrate takes
// ownership of (and closes) whatever *sql.DB it's handed, so this opens
// its own short-lived connection rather than the cache's long-lived one.
func migrateUp(config ConnectionConfig) error {
	db, err := newSQLiteConnection(config)
	if err != nil {
		return fmt.Errorf("modelcache: open migration connection: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		db.Close()
		return fmt.Errorf("modelcache: open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: "modelcache"})
	if err != nil {
		db.Close()
		return fmt.Errorf("modelcache: create sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("modelcache: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("modelcache: apply migrations: %w", err)
	}
	return nil
}
