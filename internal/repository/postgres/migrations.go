package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// DefaultMigrationsPath points at the migrations directory relative to the
// working directory.
const DefaultMigrationsPath = "file://migrations"

// RunMigrations applies every pending up migration from sourceURL.
func RunMigrations(dsn, sourceURL string) error {
	return withMigrate(dsn, sourceURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				slog.Info("migrations up to date")
				return nil
			}
			return fmt.Errorf("cannot migrate up: %w", err)
		}
		slog.Info("migrations applied")
		return nil
	})
}

// RollbackMigrations reverts the last steps migrations.
func RollbackMigrations(dsn, sourceURL string, steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	return withMigrate(dsn, sourceURL, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			return fmt.Errorf("cannot migrate down: %w", err)
		}
		slog.Info("migrations rolled back", "steps", steps)
		return nil
	})
}

func withMigrate(dsn, sourceURL string, fn func(*migrate.Migrate) error) error {
	if sourceURL == "" {
		sourceURL = DefaultMigrationsPath
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("cannot connect to db: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("cannot create driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("cannot create migrate: %w", err)
	}

	return fn(m)
}
