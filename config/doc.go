// Package config provides configuration loading and validation for the
// server, plus the factory that builds the configured storage backend.
//
// The package handles YAML configuration files, environment variables, and
// CLI flags with automatic merging and validation using
// go-playground/validator.
//
// # Configuration Precedence
//
// Values are loaded in this order (later sources override earlier ones):
//
//  1. Default values
//  2. Configuration file(s) - multiple files merged left-to-right
//  3. Environment variables (WAS_ prefix)
//  4. CLI flags
//
// # Usage
//
//	cfg, err := config.Load([]string{"config.yaml"}, cmd.Flags())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Store in context for subcommands
//	ctx = config.WithContext(ctx, cfg)
//
//	// Retrieve later
//	cfg, err = config.FromContext(ctx)
//
//	store, cleanup, err := config.NewStore(ctx, cfg.Storage)
//
// # Environment Variables
//
// All config keys map to environment variables with the WAS_ prefix:
//   - server.port → WAS_SERVER_PORT
//   - storage.backend → WAS_STORAGE_BACKEND
//   - storage.s3.bucket → WAS_STORAGE_S3_BUCKET
//
// # Storage Backends
//
// storage.backend selects one of: memory, filesystem, sqlite, postgres, s3,
// dropbox, onedrive, gdrive. Each backend reads its own section of the
// storage config.
//
// # Validation
//
// Configuration is validated using struct tags:
//   - Port must be 1-65535
//   - Backend must name a known storage backend
//   - Log level must be debug, info, warn, or error
package config
