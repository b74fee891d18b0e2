package was_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallet-storage/was"
)

func signedAs(controller string) was.SignedRequest {
	return was.SignedRequest{
		KeyID:      controller + "#fragment",
		Controller: controller,
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name       string
		signer     string
		controller string
		wantErr    bool
	}{
		{name: "exact match", signer: "did:key:zA", controller: "did:key:zA", wantErr: false},
		{name: "different controller", signer: "did:key:zA", controller: "did:key:zB", wantErr: true},
		{name: "case sensitive", signer: "did:key:zA", controller: "did:key:za", wantErr: true},
		{name: "prefix is not a match", signer: "did:key:zA", controller: "did:key:zAB", wantErr: true},
		{name: "empty controller", signer: "did:key:zA", controller: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := was.Authorize(signedAs(tt.signer), tt.controller)
			if tt.wantErr {
				assert.ErrorIs(t, err, was.ErrForbidden)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func newService(t *testing.T) (*was.SpaceService, *was.MemoryStore) {
	t.Helper()
	store := was.NewMemoryStore()
	return was.NewSpaceService(store), store
}

func TestSpaceServiceUpsertSpace(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	signed := signedAs("did:key:zA")

	err := service.UpsertSpace(ctx, signed, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA")
	require.NoError(t, err)

	space, err := store.GetSpace(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "did:key:zA", space.Controller)
}

func TestSpaceServiceUpsertSpaceValidation(t *testing.T) {
	ctx := context.Background()
	service, _ := newService(t)
	signed := signedAs("did:key:zA")

	err := service.UpsertSpace(ctx, signed, "k1", "", "did:key:zA")
	assert.ErrorIs(t, err, was.ErrValidation)

	err = service.UpsertSpace(ctx, signed, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "")
	assert.ErrorIs(t, err, was.ErrValidation)
}

func TestSpaceServiceUpsertSpaceForbidden(t *testing.T) {
	ctx := context.Background()
	service, _ := newService(t)

	// Body controller differs from the signer.
	err := service.UpsertSpace(ctx, signedAs("did:key:zA"), "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zB")
	assert.ErrorIs(t, err, was.ErrForbidden)
}

func TestSpaceServiceGetSpace(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA"))

	space, err := service.GetSpace(ctx, signedAs("did:key:zA"), "k1")
	require.NoError(t, err)
	assert.Equal(t, "urn:uuid:11111111-1111-4111-8111-111111111111", space.ID)

	_, err = service.GetSpace(ctx, signedAs("did:key:zB"), "k1")
	assert.ErrorIs(t, err, was.ErrForbidden)

	_, err = service.GetSpace(ctx, signedAs("did:key:zA"), "missing")
	assert.ErrorIs(t, err, was.ErrSpaceNotFound)
}

func TestSpaceServiceCreateSpace(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)

	space, err := service.CreateSpace(ctx, signedAs("did:key:zA"))
	require.NoError(t, err)
	assert.True(t, was.IsURNUUID(space.ID))
	assert.Equal(t, "urn:uuid:"+space.Key, space.ID)
	assert.Equal(t, "did:key:zA", space.Controller)

	stored, err := store.GetSpace(ctx, space.Key)
	require.NoError(t, err)
	assert.Equal(t, space.ID, stored.ID)
}

func TestSpaceServiceListSpaces(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA"))
	require.NoError(t, store.PutSpace(ctx, "k2", "urn:uuid:22222222-2222-4222-8222-222222222222", "did:key:zB"))

	spaces, err := service.ListSpaces(ctx, signedAs("did:key:zA"))
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.Equal(t, "k1", spaces[0].Key)
}

func TestSpaceServiceDeleteSpace(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA"))
	require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("alpha"), "text/plain"))

	// Wrong signer is rejected while the space exists.
	err := service.DeleteSpace(ctx, signedAs("did:key:zB"), "k1")
	assert.ErrorIs(t, err, was.ErrForbidden)

	require.NoError(t, service.DeleteSpace(ctx, signedAs("did:key:zA"), "k1"))
	_, err = store.GetResource(ctx, "k1", "/a.txt")
	assert.ErrorIs(t, err, was.ErrResourceNotFound)

	// Idempotent once the space is gone, regardless of signer.
	assert.NoError(t, service.DeleteSpace(ctx, signedAs("did:key:zB"), "k1"))
}

func TestSpaceServiceResources(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA"))

	err := service.PutResource(ctx, signedAs("did:key:zA"), "k1", "/greeting.txt", []byte("Hello, WAS!"), "text/plain")
	require.NoError(t, err)

	// Unsigned read.
	resource, err := service.GetResource(ctx, "k1", "/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, WAS!"), resource.Content)
	assert.Equal(t, "text/plain", resource.ContentType)

	// Non-controller writes are rejected.
	err = service.PutResource(ctx, signedAs("did:key:zB"), "k1", "/greeting.txt", []byte("tampered"), "text/plain")
	assert.ErrorIs(t, err, was.ErrForbidden)

	// Writes into an absent space fail.
	err = service.PutResource(ctx, signedAs("did:key:zA"), "missing", "/x.txt", []byte("x"), "text/plain")
	assert.ErrorIs(t, err, was.ErrSpaceNotFound)

	require.NoError(t, service.DeleteResource(ctx, signedAs("did:key:zA"), "k1", "/greeting.txt"))
	_, err = service.GetResource(ctx, "k1", "/greeting.txt")
	assert.ErrorIs(t, err, was.ErrResourceNotFound)

	// Resource deletion is idempotent.
	assert.NoError(t, service.DeleteResource(ctx, signedAs("did:key:zA"), "k1", "/greeting.txt"))
}

func TestSpaceServiceDeleteResourceForbidden(t *testing.T) {
	ctx := context.Background()
	service, store := newService(t)
	require.NoError(t, store.PutSpace(ctx, "k1", "urn:uuid:11111111-1111-4111-8111-111111111111", "did:key:zA"))
	require.NoError(t, store.PutResource(ctx, "k1", "/a.txt", []byte("alpha"), "text/plain"))

	err := service.DeleteResource(ctx, signedAs("did:key:zB"), "k1", "/a.txt")
	assert.ErrorIs(t, err, was.ErrForbidden)

	_, err = store.GetResource(ctx, "k1", "/a.txt")
	assert.NoError(t, err)
}
