// Package sqlite implements the storage contract using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wallet-storage/was"
)

// Store provides SQLite storage operations over an open database handle.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store. Migrate must have run on the database first.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetSpace(ctx context.Context, key string) (was.Space, error) {
	var id, controller string
	err := s.db.QueryRowContext(ctx,
		`SELECT space_id, controller FROM was_spaces WHERE space_key = ?`, key,
	).Scan(&id, &controller)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return was.Space{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
		}
		return was.Space{}, fmt.Errorf("get space: %w", err)
	}
	return was.Space{Key: key, ID: id, Controller: controller}, nil
}

func (s *Store) PutSpace(ctx context.Context, key, publicID, controller string) error {
	// On conflict only the controller changes; the public id and any
	// resources are preserved.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO was_spaces (space_key, space_id, controller)
		VALUES (?, ?, ?)
		ON CONFLICT (space_key) DO UPDATE SET controller = excluded.controller`,
		key, publicID, controller,
	)
	if err != nil {
		return fmt.Errorf("put space: %w", err)
	}
	return nil
}

// DeleteSpace removes a space and all of its resources in one transaction.
func (s *Store) DeleteSpace(ctx context.Context, key string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete space: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM was_resources WHERE space_key = ?`, key); err != nil {
		return false, fmt.Errorf("delete space: resources: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM was_spaces WHERE space_key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete space: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete space: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete space: commit: %w", err)
	}
	return affected > 0, nil
}

func (s *Store) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT space_key, space_id, controller FROM was_spaces WHERE controller = ? ORDER BY space_key`,
		controller,
	)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	defer rows.Close()

	result := []was.Space{}
	for rows.Next() {
		var space was.Space
		if err := rows.Scan(&space.Key, &space.ID, &space.Controller); err != nil {
			return nil, fmt.Errorf("list spaces: scan: %w", err)
		}
		result = append(result, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return result, nil
}

func (s *Store) GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error) {
	var resource was.Resource
	err := s.db.QueryRowContext(ctx,
		`SELECT content, content_type FROM was_resources WHERE space_key = ? AND path = ?`,
		spaceKey, path,
	).Scan(&resource.Content, &resource.ContentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return resource, nil
}

func (s *Store) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM was_spaces WHERE space_key = ?`, spaceKey,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
		}
		return fmt.Errorf("put resource: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO was_resources (space_key, path, content, content_type)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (space_key, path) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type`,
		spaceKey, path, content, contentType,
	)
	if err != nil {
		return fmt.Errorf("put resource: %w", err)
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM was_resources WHERE space_key = ? AND path = ?`, spaceKey, path,
	)
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete resource: rows affected: %w", err)
	}
	return affected > 0, nil
}
