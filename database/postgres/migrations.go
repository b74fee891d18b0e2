package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the spaces and resources tables if they do not exist.
// Resources carry an ON DELETE CASCADE foreign key, so dropping a space
// removes its resources in the same statement.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS was_spaces (
			space_key TEXT NOT NULL PRIMARY KEY,
			space_id TEXT NOT NULL,
			controller TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_was_spaces_controller ON was_spaces (controller)`,
		`CREATE TABLE IF NOT EXISTS was_resources (
			space_key TEXT NOT NULL REFERENCES was_spaces (space_key) ON DELETE CASCADE,
			path TEXT NOT NULL,
			content BYTEA NOT NULL,
			content_type TEXT NOT NULL,
			PRIMARY KEY (space_key, path)
		)`,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DropTables removes the schema. Intended for tests.
func DropTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"was_resources", "was_spaces"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
