package was

import (
	"context"
	"fmt"
	"sync"
)

type memSpace struct {
	id         string
	controller string
	resources  map[string]Resource
}

// MemoryStore is the reference in-memory Store. It defines the baseline
// semantics every other backend must reproduce. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	spaces map[string]*memSpace
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{spaces: make(map[string]*memSpace)}
}

// Clear removes all spaces and resources.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces = make(map[string]*memSpace)
}

func (s *MemoryStore) GetSpace(ctx context.Context, key string) (Space, error) {
	if err := ctx.Err(); err != nil {
		return Space{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spaces[key]
	if !ok {
		return Space{}, fmt.Errorf("get space %q: %w", key, ErrSpaceNotFound)
	}
	return Space{Key: key, ID: sp.id, Controller: sp.controller}, nil
}

func (s *MemoryStore) PutSpace(ctx context.Context, key, publicID, controller string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.spaces[key]; ok {
		existing.controller = controller
		return nil
	}
	s.spaces[key] = &memSpace{
		id:         publicID,
		controller: controller,
		resources:  make(map[string]Resource),
	}
	return nil
}

func (s *MemoryStore) DeleteSpace(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.spaces[key]
	delete(s.spaces, key)
	return ok, nil
}

func (s *MemoryStore) ListSpaces(ctx context.Context, controller string) ([]Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Space{}
	for key, sp := range s.spaces {
		if sp.controller == controller {
			result = append(result, Space{Key: key, ID: sp.id, Controller: sp.controller})
		}
	}
	return result, nil
}

func (s *MemoryStore) GetResource(ctx context.Context, spaceKey, path string) (Resource, error) {
	if err := ctx.Err(); err != nil {
		return Resource{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sp, ok := s.spaces[spaceKey]
	if !ok {
		return Resource{}, fmt.Errorf("get resource %q: %w", path, ErrResourceNotFound)
	}
	r, ok := sp.resources[path]
	if !ok {
		return Resource{}, fmt.Errorf("get resource %q: %w", path, ErrResourceNotFound)
	}
	return r, nil
}

func (s *MemoryStore) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spaces[spaceKey]
	if !ok {
		return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, ErrSpaceNotFound)
	}

	stored := Resource{Content: make([]byte, len(content)), ContentType: contentType}
	copy(stored.Content, content)
	sp.resources[path] = stored
	return nil
}

func (s *MemoryStore) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.spaces[spaceKey]
	if !ok {
		return false, nil
	}
	_, ok = sp.resources[path]
	delete(sp.resources, path)
	return ok, nil
}
