// Package postgres implements the storage contract using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-storage/was"
)

// pgForeignKeyViolation is the SQLSTATE for a foreign key violation.
const pgForeignKeyViolation = "23503"

// Store provides PostgreSQL storage operations over a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store. Migrate must have run on the pool first.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) GetSpace(ctx context.Context, key string) (was.Space, error) {
	var id, controller string
	err := s.pool.QueryRow(ctx,
		`SELECT space_id, controller FROM was_spaces WHERE space_key = $1`, key,
	).Scan(&id, &controller)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return was.Space{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
		}
		return was.Space{}, fmt.Errorf("get space: %w", err)
	}
	return was.Space{Key: key, ID: id, Controller: controller}, nil
}

func (s *Store) PutSpace(ctx context.Context, key, publicID, controller string) error {
	// On conflict only the controller changes; the public id and any
	// resources are preserved.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO was_spaces (space_key, space_id, controller)
		VALUES ($1, $2, $3)
		ON CONFLICT (space_key) DO UPDATE SET controller = EXCLUDED.controller`,
		key, publicID, controller,
	)
	if err != nil {
		return fmt.Errorf("put space: %w", err)
	}
	return nil
}

// DeleteSpace removes a space; the foreign key cascade drops its resources.
func (s *Store) DeleteSpace(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM was_spaces WHERE space_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete space: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT space_key, space_id, controller FROM was_spaces WHERE controller = $1 ORDER BY space_key`,
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
	err := s.pool.QueryRow(ctx,
		`SELECT content, content_type FROM was_resources WHERE space_key = $1 AND path = $2`,
		spaceKey, path,
	).Scan(&resource.Content, &resource.ContentType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return resource, nil
}

func (s *Store) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO was_resources (space_key, path, content, content_type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (space_key, path) DO UPDATE SET
			content = EXCLUDED.content,
			content_type = EXCLUDED.content_type`,
		spaceKey, path, content, contentType,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
		}
		return fmt.Errorf("put resource: %w", err)
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM was_resources WHERE space_key = $1 AND path = $2`, spaceKey, path,
	)
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
