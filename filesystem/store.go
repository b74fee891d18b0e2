// Package filesystem provides a file system storage backend. Spaces live
// under a sandboxed root directory, each with a metadata file and a flat
// directory of percent-encoded resource files. Writes are atomic using temp
// files and rename.
package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"

	"github.com/google/uuid"

	"github.com/wallet-storage/was"
)

const (
	spacesDir    = "spaces"
	metaFileName = "_meta.json"
	resourcesDir = "resources"
)

// Store provides file system storage operations.
type Store struct {
	root *os.Root
}

// NewStore creates a Store over the given root directory. The root provides
// sandboxed file operations preventing path traversal.
func NewStore(root *os.Root) *Store {
	return &Store{root: root}
}

// spaceMeta is the on-disk space metadata document.
type spaceMeta struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
}

// resourceMeta is the on-disk sidecar next to each resource's content file.
type resourceMeta struct {
	ContentType string `json:"contentType"`
}

func spaceDir(key string) string {
	return path.Join(spacesDir, was.EncodeResourcePath(key))
}

func spaceMetaPath(key string) string {
	return path.Join(spaceDir(key), metaFileName)
}

// resourceDataPath returns the content file for a resource. The resource
// path is percent-encoded into a single flat file name, so nested paths
// never create directories.
func resourceDataPath(key, resourcePath string) string {
	return path.Join(spaceDir(key), resourcesDir, was.EncodeResourcePath(resourcePath)+".data")
}

func resourceMetaPath(key, resourcePath string) string {
	return path.Join(spaceDir(key), resourcesDir, was.EncodeResourcePath(resourcePath)+".meta")
}

// writeFileAtomic writes data to path via a temp file in the root followed
// by a rename, creating intermediate directories as needed.
func (s *Store) writeFileAtomic(filePath string, data []byte) error {
	tmpFile := fmt.Sprintf(".t%s", uuid.New().String())
	t, err := s.root.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("could not open temp file: %w", err)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(t.Name()); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	if _, err := t.Write(data); err != nil {
		return fmt.Errorf("could not write temp file: %w", err)
	}
	if err := t.Sync(); err != nil {
		return fmt.Errorf("could not sync written file: %w", err)
	}

	if dir := path.Dir(filePath); dir != "." {
		if err := s.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create intermediate directories: %w", err)
		}
	}

	if err := s.root.Rename(tmpFile, filePath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	success = true
	return nil
}

func (s *Store) readSpaceMeta(key string) (spaceMeta, error) {
	data, err := s.root.ReadFile(spaceMetaPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return spaceMeta{}, fmt.Errorf("get space %q: %w", key, was.ErrSpaceNotFound)
		}
		return spaceMeta{}, fmt.Errorf("failed to read space metadata: %w", err)
	}

	var meta spaceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return spaceMeta{}, fmt.Errorf("corrupt space metadata for %q: %w", key, err)
	}
	return meta, nil
}

func (s *Store) GetSpace(ctx context.Context, key string) (was.Space, error) {
	if err := ctx.Err(); err != nil {
		return was.Space{}, err
	}

	meta, err := s.readSpaceMeta(key)
	if err != nil {
		return was.Space{}, err
	}
	return was.Space{Key: key, ID: meta.ID, Controller: meta.Controller}, nil
}

func (s *Store) PutSpace(ctx context.Context, key, publicID, controller string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := spaceMeta{ID: publicID, Controller: controller}

	// An update keeps the existing public id and changes only the
	// controller; resources stay untouched.
	existing, err := s.readSpaceMeta(key)
	switch {
	case err == nil:
		meta.ID = existing.ID
	case !errors.Is(err, was.ErrSpaceNotFound):
		return err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode space metadata: %w", err)
	}
	return s.writeFileAtomic(spaceMetaPath(key), data)
}

func (s *Store) DeleteSpace(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	dir := spaceDir(key)
	if _, err := s.root.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat space directory: %w", err)
	}

	if err := s.root.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to remove space directory: %w", err)
	}
	return true, nil
}

func (s *Store) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(s.root.FS(), spacesDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []was.Space{}, nil
		}
		return nil, fmt.Errorf("failed to list spaces: %w", err)
	}

	result := []was.Space{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		key, err := was.DecodeResourcePath(entry.Name())
		if err != nil {
			slog.Warn("skipping space directory with invalid name", "name", entry.Name())
			continue
		}

		meta, err := s.readSpaceMeta(key)
		if err != nil {
			// A directory without metadata is a partially deleted space.
			if errors.Is(err, was.ErrSpaceNotFound) {
				continue
			}
			return nil, err
		}

		if meta.Controller == controller {
			result = append(result, was.Space{Key: key, ID: meta.ID, Controller: meta.Controller})
		}
	}
	return result, nil
}

func (s *Store) GetResource(ctx context.Context, spaceKey, resourcePath string) (was.Resource, error) {
	if err := ctx.Err(); err != nil {
		return was.Resource{}, err
	}

	metaData, err := s.root.ReadFile(resourceMetaPath(spaceKey, resourcePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", resourcePath, was.ErrResourceNotFound)
		}
		return was.Resource{}, fmt.Errorf("failed to read resource metadata: %w", err)
	}

	var meta resourceMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return was.Resource{}, fmt.Errorf("corrupt resource metadata for %q: %w", resourcePath, err)
	}

	content, err := s.root.ReadFile(resourceDataPath(spaceKey, resourcePath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", resourcePath, was.ErrResourceNotFound)
		}
		return was.Resource{}, fmt.Errorf("failed to read resource content: %w", err)
	}

	return was.Resource{Content: content, ContentType: meta.ContentType}, nil
}

func (s *Store) PutResource(ctx context.Context, spaceKey, resourcePath string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.root.Stat(spaceMetaPath(spaceKey)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("put resource %q: space %q: %w", resourcePath, spaceKey, was.ErrSpaceNotFound)
		}
		return fmt.Errorf("failed to stat space metadata: %w", err)
	}

	if err := s.writeFileAtomic(resourceDataPath(spaceKey, resourcePath), content); err != nil {
		return err
	}

	metaData, err := json.Marshal(resourceMeta{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to encode resource metadata: %w", err)
	}
	return s.writeFileAtomic(resourceMetaPath(spaceKey, resourcePath), metaData)
}

func (s *Store) DeleteResource(ctx context.Context, spaceKey, resourcePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	dataPath := resourceDataPath(spaceKey, resourcePath)
	if _, err := s.root.Stat(dataPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat resource: %w", err)
	}

	if err := s.root.Remove(dataPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("could not delete resource content: %w", err)
	}
	if err := s.root.Remove(resourceMetaPath(spaceKey, resourcePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("could not delete resource metadata: %w", err)
	}
	return true, nil
}
