package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate creates the spaces and resources tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS was_spaces (
			space_key TEXT NOT NULL PRIMARY KEY,
			space_id TEXT NOT NULL,
			controller TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_was_spaces_controller ON was_spaces (controller)`,
		`CREATE TABLE IF NOT EXISTS was_resources (
			space_key TEXT NOT NULL REFERENCES was_spaces (space_key),
			path TEXT NOT NULL,
			content BLOB NOT NULL,
			content_type TEXT NOT NULL,
			PRIMARY KEY (space_key, path)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DropTables removes the schema. Intended for tests.
func DropTables(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"was_resources", "was_spaces"} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
