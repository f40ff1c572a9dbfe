// Package postgres provides the PostgreSQL connection pool and schema
// migrations.  Migrations are embedded in the binary and applied with
// golang-migrate, either on startup (postgres.auto_migrate) or explicitly.
package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/molstruct/internal/infrastructure/monitoring/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ─────────────────────────────────────────────────────────────────────────────
// Migrator
// ─────────────────────────────────────────────────────────────────────────────

// Migrator applies the embedded schema migrations over an open Connection.
type Migrator struct {
	conn   *Connection
	logger logging.Logger
}

// NewMigrator binds a migrator to conn.
func NewMigrator(conn *Connection, log logging.Logger) *Migrator {
	return &Migrator{conn: conn, logger: log}
}

func (m *Migrator) instance() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(m.conn.DB(), &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	mg, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mg, nil
}

// Up applies all pending migrations.  No pending migrations is not an error.
func (m *Migrator) Up() error {
	mg, err := m.instance()
	if err != nil {
		return err
	}

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.Version()
		return fmt.Errorf("failed to run migrations (current version: %d): %w", version, err)
	}

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		m.logger.Warn("failed to read migration version", logging.Err(err))
	}
	m.logger.Info("database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty))
	return nil
}

// Rollback reverts the given number of migrations.
func (m *Migrator) Rollback(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be greater than 0, got %d", steps)
	}
	mg, err := m.instance()
	if err != nil {
		return err
	}
	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("no migrations to roll back")
		}
		return fmt.Errorf("failed to rollback %d step(s): %w", steps, err)
	}
	return nil
}

// Status reports the applied version and whether a previous run left the
// schema dirty.  A database with no migrations reports version 0.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	mg, err := m.instance()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the recorded version without running migrations.  Only for
// recovering from a dirty state.
func (m *Migrator) Force(version int) error {
	mg, err := m.instance()
	if err != nil {
		return err
	}
	if err := mg.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// MigrationFiles lists the embedded migration file names.
func MigrationFiles() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

//Personal.AI order the ending
