package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/database/sqlite"
	"github.com/wallet-storage/was/storetest"

	_ "modernc.org/sqlite" // SQLite driver
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "was.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlite.Migrate(context.Background(), db))
	return sqlite.NewStore(db)
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) was.Store {
		return newStore(t)
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "was.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, sqlite.Migrate(ctx, db))
	require.NoError(t, sqlite.Migrate(ctx, db))
}

func TestDropTables(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "was.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	require.NoError(t, sqlite.Migrate(ctx, db))
	require.NoError(t, sqlite.DropTables(ctx, db))

	store := sqlite.NewStore(db)
	err = store.PutSpace(ctx, "k1", "urn:uuid:f47ac10b-58cc-4372-a567-0e02b2c3d479", "did:key:zA")
	require.Error(t, err)
}
