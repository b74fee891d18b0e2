package filesystem_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
	"github.com/wallet-storage/was/filesystem"
	"github.com/wallet-storage/was/storetest"
)

func newRoot(t *testing.T, dir string) *os.Root {
	t.Helper()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return root
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) was.Store {
		return filesystem.NewStore(newRoot(t, t.TempDir()))
	})
}

func TestPersistenceAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := filesystem.NewStore(newRoot(t, dir))
	require.NoError(t, first.PutSpace(ctx, "k1", "urn:uuid:f47ac10b-58cc-4372-a567-0e02b2c3d479", "did:key:zA"))
	require.NoError(t, first.PutResource(ctx, "k1", "/notes/a.txt", []byte("persisted"), "text/plain"))

	// A fresh store over the same directory sees the same data.
	second := filesystem.NewStore(newRoot(t, dir))
	space, err := second.GetSpace(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "did:key:zA", space.Controller)

	resource, err := second.GetResource(ctx, "k1", "/notes/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(resource.Content))
	assert.Equal(t, "text/plain", resource.ContentType)
}

func TestTraversalPathsStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := filesystem.NewStore(newRoot(t, dir))

	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:f47ac10b-58cc-4372-a567-0e02b2c3d479", "did:key:zA"))
	require.NoError(t, store.PutResource(ctx, "k1", "/../../etc/passwd", []byte("x"), "text/plain"))

	// The escaped path is a flat file name, so nothing is written outside
	// the root.
	_, err := os.Stat(dir + "/etc")
	assert.True(t, os.IsNotExist(err))

	resource, err := store.GetResource(ctx, "k1", "/../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "x", string(resource.Content))
}

func TestNoLeftoverTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := filesystem.NewStore(newRoot(t, dir))

	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:f47ac10b-58cc-4372-a567-0e02b2c3d479", "did:key:zA"))
	require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("x"), "text/plain"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".t", "temp file left behind: %s", entry.Name())
	}
}
