package was

import "context"

// Store is the storage contract every backend implements. It is consumed by
// SpaceService and by the HTTP route layer; it is an in-process contract, not
// a wire protocol.
//
// Required guarantees, independent of backend:
//
//   - Operations on a single space or resource key are atomic with respect to
//     other operations on the same key; concurrent writers resolve
//     last-writer-wins, never a torn record.
//   - A completed delete is immediately visible: no subsequent read on a
//     deleted key (or, for a deleted space, any resource under it) may
//     observe the old value.
//   - No cross-key transactions are required.
//
// Backend transport failures (an unreachable remote store, a failed disk)
// must propagate as their own errors and never be coerced into
// ErrSpaceNotFound or ErrResourceNotFound.
type Store interface {
	// GetSpace retrieves a space by key. Returns ErrSpaceNotFound if absent.
	GetSpace(ctx context.Context, key string) (Space, error)

	// PutSpace creates the space if absent. If present, only the controller
	// is updated; existing resources are preserved.
	PutSpace(ctx context.Context, key, publicID, controller string) error

	// DeleteSpace removes the space and all resources scoped to it,
	// atomically from the caller's perspective. It reports whether the space
	// existed; repeated calls return false.
	DeleteSpace(ctx context.Context, key string) (bool, error)

	// ListSpaces returns exactly the spaces whose controller equals the
	// argument. Order is unspecified.
	ListSpaces(ctx context.Context, controller string) ([]Space, error)

	// GetResource retrieves a resource by space key and path. Returns
	// ErrResourceNotFound if the space or the resource is absent.
	GetResource(ctx context.Context, spaceKey, path string) (Resource, error)

	// PutResource creates or overwrites a resource. Returns ErrSpaceNotFound
	// if the space does not exist.
	PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error

	// DeleteResource removes a resource, reporting whether it existed;
	// repeated calls return false.
	DeleteResource(ctx context.Context, spaceKey, path string) (bool, error)
}
