package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/database/postgres"
	"github.com/wallet-storage/was/database/sqlite"

	_ "modernc.org/sqlite" // SQLite driver
)

// Config holds the configuration for connecting to a relational backend.
type Config struct {
	// Driver specifies the database type: "sqlite" or "postgres"
	Driver string
	// DSN is the data source name (connection string)
	DSN string
}

// Connect establishes a connection to the configured database backend, runs
// migrations, and returns a Store. The returned cleanup function should be
// called to close the connection.
func Connect(ctx context.Context, cfg Config) (was.Store, func(), error) {
	switch cfg.Driver {
	case "sqlite":
		return connectSQLite(ctx, cfg.DSN)
	case "postgres":
		return connectPostgres(ctx, cfg.DSN)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func connectSQLite(ctx context.Context, dsn string) (was.Store, func(), error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err = sqlite.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}

	cleanup := func() {
		_ = db.Close()
	}

	return sqlite.NewStore(db), cleanup, nil
}

func connectPostgres(ctx context.Context, dsn string) (was.Store, func(), error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err = postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return postgres.NewStore(pool), pool.Close, nil
}
