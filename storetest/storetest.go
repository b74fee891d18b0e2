// Package storetest runs the storage contract suite against any Store
// implementation. The semantics asserted here are those of the reference
// in-memory store; every backend must pass unchanged.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
)

const (
	controllerA = "did:key:z6MkControllerAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	controllerB = "did:key:z6MkControllerBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"
)

// Run exercises the full storage contract against stores produced by
// newStore. Each subtest receives a fresh, empty store.
func Run(t *testing.T, newStore func(t *testing.T) was.Store) {
	ctx := context.Background()

	t.Run("get absent space", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetSpace(ctx, "missing")
		assert.ErrorIs(t, err, was.ErrSpaceNotFound)
	})

	t.Run("put and get space", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))

		space, err := store.GetSpace(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, "urn:uuid:11111111-1111-4111-8111-111111111111", space.ID)
		assert.Equal(t, controllerA, space.Controller)
		assert.Equal(t, "k1", space.Key)
	})

	t.Run("re-put updates controller and preserves resources", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("alpha"), "text/plain"))

		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:22222222-2222-4222-8222-222222222222", controllerB))

		space, err := store.GetSpace(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, controllerB, space.Controller)

		resource, err := store.GetResource(ctx, "k1", "/a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("alpha"), resource.Content)
	})

	t.Run("delete space is idempotent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))

		found, err := store.DeleteSpace(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, found)

		found, err = store.DeleteSpace(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("delete space cascades to resources", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("alpha"), "text/plain"))
		require.NoError(t, store.PutResource(ctx, "k1", "/nested/b.bin", []byte{0x00, 0x01}, "application/octet-stream"))

		found, err := store.DeleteSpace(ctx, "k1")
		require.NoError(t, err)
		require.True(t, found)

		_, err = store.GetResource(ctx, "k1", "/a.txt")
		assert.ErrorIs(t, err, was.ErrResourceNotFound)
		_, err = store.GetResource(ctx, "k1", "/nested/b.bin")
		assert.ErrorIs(t, err, was.ErrResourceNotFound)

		// Re-creating the space must not resurrect old resources.
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		_, err = store.GetResource(ctx, "k1", "/a.txt")
		assert.ErrorIs(t, err, was.ErrResourceNotFound)
	})

	t.Run("list spaces by controller", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		require.NoError(t, store.PutSpace(ctx, "k2", "urn:uuid:22222222-2222-4222-8222-222222222222", controllerA))
		require.NoError(t, store.PutSpace(ctx, "k3", "urn:uuid:33333333-3333-4333-8333-333333333333", controllerB))

		spaces, err := store.ListSpaces(ctx, controllerA)
		require.NoError(t, err)
		require.Len(t, spaces, 2)
		keys := []string{spaces[0].Key, spaces[1].Key}
		assert.ElementsMatch(t, []string{"k1", "k2"}, keys)

		spaces, err = store.ListSpaces(ctx, "did:key:zNobody")
		require.NoError(t, err)
		assert.Empty(t, spaces)
	})

	t.Run("put resource in absent space fails", func(t *testing.T) {
		store := newStore(t)
		err := store.PutResource(ctx, "missing", "/a.txt", []byte("alpha"), "text/plain")
		assert.ErrorIs(t, err, was.ErrSpaceNotFound)
	})

	t.Run("resource round trip", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))

		content := []byte("Hello, WAS!")
		require.NoError(t, store.PutResource(ctx, "k1", "/greeting.txt", content, "text/plain"))

		resource, err := store.GetResource(ctx, "k1", "/greeting.txt")
		require.NoError(t, err)
		assert.Equal(t, content, resource.Content)
		assert.Equal(t, "text/plain", resource.ContentType)
	})

	t.Run("resource overwrite", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("one"), "text/plain"))
		require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("two"), "application/json"))

		resource, err := store.GetResource(ctx, "k1", "/a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), resource.Content)
		assert.Equal(t, "application/json", resource.ContentType)
	})

	t.Run("get absent resource", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))

		_, err := store.GetResource(ctx, "k1", "/missing.txt")
		assert.ErrorIs(t, err, was.ErrResourceNotFound)
	})

	t.Run("delete resource is idempotent", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))
		require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("alpha"), "text/plain"))

		found, err := store.DeleteResource(ctx, "k1", "/a.txt")
		require.NoError(t, err)
		assert.True(t, found)

		found, err = store.DeleteResource(ctx, "k1", "/a.txt")
		require.NoError(t, err)
		assert.False(t, found)

		// Deleting under an absent space is a no-op, not an error.
		found, err = store.DeleteResource(ctx, "missing", "/a.txt")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("binary content and exotic paths", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", controllerA))

		content := []byte{0x00, 0xff, 0x7f, 0x80, 0x0a}
		path := "/dir with space/file%20name.bin"
		require.NoError(t, store.PutResource(ctx, "k1", path, content, "application/octet-stream"))

		resource, err := store.GetResource(ctx, "k1", path)
		require.NoError(t, err)
		assert.Equal(t, content, resource.Content)
	})
}
