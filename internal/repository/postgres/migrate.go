// internal/repository/postgres/migrate.go
package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// RunMigrations applies the embedded goose migrations (command is usually "up").
func RunMigrations(ctx context.Context, db *sqlx.DB, command string) error {
	migrationCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.RunContext(migrationCtx, command, db.DB, "migrations"); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
