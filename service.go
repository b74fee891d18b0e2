package was

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Authorize grants access iff the authenticated signer's controller equals
// the given space controller. The comparison is exact and case-sensitive; no
// normalization or hierarchical matching is applied.
func Authorize(signed SignedRequest, controller string) error {
	if signed.Controller != controller {
		return fmt.Errorf("authorize: signer does not match space controller: %w", ErrForbidden)
	}
	return nil
}

// SpaceService combines a Store with the authorization gate. It owns no
// global state; the store handle is passed in explicitly.
type SpaceService struct {
	store Store
}

// NewSpaceService creates a service over the given store.
func NewSpaceService(store Store) *SpaceService {
	return &SpaceService{store: store}
}

// UpsertSpace creates or updates a space at key. The signer must match the
// controller named in the request body; the public ID is stored as given and
// deliberately not validated against key.
func (s *SpaceService) UpsertSpace(ctx context.Context, signed SignedRequest, key, publicID, controller string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("upsert space: %w", err)
	}

	if publicID == "" || controller == "" {
		return fmt.Errorf("upsert space: body must include 'id' and 'controller': %w", ErrValidation)
	}

	if err := Authorize(signed, controller); err != nil {
		return err
	}

	if err := s.store.PutSpace(ctx, key, publicID, controller); err != nil {
		return fmt.Errorf("upsert space %q: %w", key, err)
	}
	return nil
}

// GetSpace returns space metadata; only the controller may read it.
func (s *SpaceService) GetSpace(ctx context.Context, signed SignedRequest, key string) (Space, error) {
	if err := ctx.Err(); err != nil {
		return Space{}, fmt.Errorf("get space: %w", err)
	}

	space, err := s.store.GetSpace(ctx, key)
	if err != nil {
		return Space{}, fmt.Errorf("get space %q: %w", key, err)
	}

	if err := Authorize(signed, space.Controller); err != nil {
		return Space{}, err
	}
	return space, nil
}

// CreateSpace creates a space with a server-generated key and urn:uuid public
// ID, controlled by the signer.
func (s *SpaceService) CreateSpace(ctx context.Context, signed SignedRequest) (Space, error) {
	if err := ctx.Err(); err != nil {
		return Space{}, fmt.Errorf("create space: %w", err)
	}

	u := uuid.New()
	space := Space{Key: u.String(), ID: MakeURNUUID(u), Controller: signed.Controller}

	if err := s.store.PutSpace(ctx, space.Key, space.ID, space.Controller); err != nil {
		return Space{}, fmt.Errorf("create space %q: %w", space.Key, err)
	}
	return space, nil
}

// ListSpaces returns the spaces the signer controls.
func (s *SpaceService) ListSpaces(ctx context.Context, signed SignedRequest) ([]Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}

	spaces, err := s.store.ListSpaces(ctx, signed.Controller)
	if err != nil {
		return nil, fmt.Errorf("list spaces: %w", err)
	}
	return spaces, nil
}

// DeleteSpace removes a space and all its resources. If the space exists the
// signer must control it; deleting an absent space succeeds (idempotent).
func (s *SpaceService) DeleteSpace(ctx context.Context, signed SignedRequest, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete space: %w", err)
	}

	space, err := s.store.GetSpace(ctx, key)
	if err != nil && !errors.Is(err, ErrSpaceNotFound) {
		return fmt.Errorf("delete space %q: %w", key, err)
	}
	if err == nil {
		if err := Authorize(signed, space.Controller); err != nil {
			return err
		}
	}

	if _, err := s.store.DeleteSpace(ctx, key); err != nil {
		return fmt.Errorf("delete space %q: %w", key, err)
	}
	return nil
}

// GetResource retrieves a resource. Reads are public; no signature is
// required.
func (s *SpaceService) GetResource(ctx context.Context, spaceKey, path string) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return Resource{}, fmt.Errorf("get resource: %w", err)
	}

	resource, err := s.store.GetResource(ctx, spaceKey, path)
	if err != nil {
		return Resource{}, fmt.Errorf("get resource %q: %w", path, err)
	}
	return resource, nil
}

// PutResource creates or overwrites a resource in a space the signer
// controls. Returns ErrSpaceNotFound if the space is absent.
func (s *SpaceService) PutResource(ctx context.Context, signed SignedRequest, spaceKey, path string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put resource: %w", err)
	}

	space, err := s.store.GetSpace(ctx, spaceKey)
	if err != nil {
		return fmt.Errorf("put resource %q: %w", path, err)
	}
	if err := Authorize(signed, space.Controller); err != nil {
		return err
	}

	if err := s.store.PutResource(ctx, spaceKey, path, content, contentType); err != nil {
		return fmt.Errorf("put resource %q: %w", path, err)
	}
	return nil
}

// DeleteResource removes a resource. If the space exists the signer must
// control it; deletion is idempotent.
func (s *SpaceService) DeleteResource(ctx context.Context, signed SignedRequest, spaceKey, path string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	space, err := s.store.GetSpace(ctx, spaceKey)
	if err != nil && !errors.Is(err, ErrSpaceNotFound) {
		return fmt.Errorf("delete resource %q: %w", path, err)
	}
	if err == nil {
		if err := Authorize(signed, space.Controller); err != nil {
			return err
		}
	}

	if _, err := s.store.DeleteResource(ctx, spaceKey, path); err != nil {
		return fmt.Errorf("delete resource %q: %w", path, err)
	}
	return nil
}
