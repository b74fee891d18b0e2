// Package database provides a unified interface for connecting to relational
// storage backends.
//
// The package supports PostgreSQL and SQLite and handles connection
// management and schema migrations automatically.
//
// # Supported Backends
//
//   - PostgreSQL: production-ready backend using a pgx connection pool
//   - SQLite: lightweight backend suitable for development and single-node
//     deployments
//
// # Usage
//
//	cfg := database.Config{
//	    Driver: "sqlite",
//	    DSN:    "was.db",
//	}
//
//	store, cleanup, err := database.Connect(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
//
// Connect opens the connection, runs migrations, and returns a ready-to-use
// Store.
//
// # Subpackages
//
//   - database/postgres: PostgreSQL implementation using pgx
//   - database/sqlite: SQLite implementation using modernc.org/sqlite
package database
