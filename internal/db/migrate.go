package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations applies all pending migrations from the embedded set.
func RunMigrations(database *sql.DB, driver string) error {
	err := goose.SetDialect(gooseDialect(driver))
	if err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	goose.SetBaseFS(dir)

	err = goose.Up(database, ".")
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("migrations completed successfully")
	return nil
}

// gooseDialect maps our driver names onto goose's where they differ.
func gooseDialect(driver string) string {
	switch driver {
	case "sqlite":
		return "sqlite3"
	case "pgx":
		return "postgres"
	default:
		return driver
	}
}
