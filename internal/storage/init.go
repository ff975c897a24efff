// internal/storage/init.go
package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

const migrationPath = "migrations"

//go:embed migrations/*.sql
var migrationsFS embed.FS

func runMigrations(db *sql.DB) error {
	const op = "storage.migrations"

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err := goose.Up(db, migrationPath)
	if err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			slog.Info("no migrations to apply")
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("database migrations applied")
	return nil
}
