// Package s3store provides an Amazon S3 storage backend.
//
// Key layout:
//
//	{prefix}spaces/{spaceKey}/_meta.json
//	{prefix}spaces/{spaceKey}/resources/{encodedPath}
//
// Resource content types are stored as the S3 object's Content-Type, so no
// sidecar objects are needed.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wallet-storage/was"
)

// Client is the subset of the S3 API the store uses.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Store provides S3 storage operations.
type Store struct {
	client Client
	bucket string
	prefix string
}

// NewStore creates a Store over an existing S3 client.
func NewStore(client Client, bucket, prefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// NewFromConfig creates a Store with a client built from an AWS config.
func NewFromConfig(cfg aws.Config, bucket, prefix string) *Store {
	return NewStore(s3.NewFromConfig(cfg), bucket, prefix)
}

// spaceMeta is the space metadata document stored at the meta key.
type spaceMeta struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
}

func (s *Store) metaKey(spaceKey string) string {
	return fmt.Sprintf("%sspaces/%s/_meta.json", s.prefix, spaceKey)
}

func (s *Store) resourceKey(spaceKey, path string) string {
	return fmt.Sprintf("%sspaces/%s/resources/%s", s.prefix, spaceKey, was.EncodeResourcePath(path))
}

func (s *Store) spacePrefix(spaceKey string) string {
	return fmt.Sprintf("%sspaces/%s/", s.prefix, spaceKey)
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

func (s *Store) readMeta(ctx context.Context, spaceKey string) (spaceMeta, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(spaceKey)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return spaceMeta{}, fmt.Errorf("get space %q: %w", spaceKey, was.ErrSpaceNotFound)
		}
		return spaceMeta{}, fmt.Errorf("get space metadata: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return spaceMeta{}, fmt.Errorf("read space metadata: %w", err)
	}

	var meta spaceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return spaceMeta{}, fmt.Errorf("corrupt space metadata for %q: %w", spaceKey, err)
	}
	return meta, nil
}

func (s *Store) GetSpace(ctx context.Context, key string) (was.Space, error) {
	if err := ctx.Err(); err != nil {
		return was.Space{}, err
	}

	meta, err := s.readMeta(ctx, key)
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

	// Updates keep the existing public id; only the controller changes.
	existing, err := s.readMeta(ctx, key)
	switch {
	case err == nil:
		meta.ID = existing.ID
	case !errors.Is(err, was.ErrSpaceNotFound):
		return err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode space metadata: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.metaKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put space metadata: %w", err)
	}
	return nil
}

func (s *Store) DeleteSpace(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head space metadata: %w", err)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.spacePrefix(key)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("list space objects: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects},
		})
		if err != nil {
			return false, fmt.Errorf("delete space objects: %w", err)
		}
	}
	return true, nil
}

func (s *Store) ListSpaces(ctx context.Context, controller string) ([]was.Space, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := s.prefix + "spaces/"
	result := []was.Space{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list spaces: %w", err)
		}

		for _, cp := range page.CommonPrefixes {
			if cp.Prefix == nil {
				continue
			}
			key := strings.TrimSuffix((*cp.Prefix)[len(prefix):], "/")

			meta, err := s.readMeta(ctx, key)
			if err != nil {
				// A prefix without metadata is a partially deleted space.
				if errors.Is(err, was.ErrSpaceNotFound) {
					continue
				}
				return nil, err
			}

			if meta.Controller == controller {
				result = append(result, was.Space{Key: key, ID: meta.ID, Controller: meta.Controller})
			}
		}
	}
	return result, nil
}

func (s *Store) GetResource(ctx context.Context, spaceKey, path string) (was.Resource, error) {
	if err := ctx.Err(); err != nil {
		return was.Resource{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.resourceKey(spaceKey, path)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return was.Resource{}, fmt.Errorf("get resource %q: %w", path, was.ErrResourceNotFound)
		}
		return was.Resource{}, fmt.Errorf("get resource: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return was.Resource{}, fmt.Errorf("read resource content: %w", err)
	}

	return was.Resource{Content: content, ContentType: aws.ToString(out.ContentType)}, nil
}

func (s *Store) PutResource(ctx context.Context, spaceKey, path string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.metaKey(spaceKey)),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("put resource %q: space %q: %w", path, spaceKey, was.ErrSpaceNotFound)
		}
		return fmt.Errorf("head space metadata: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.resourceKey(spaceKey, path)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put resource: %w", err)
	}
	return nil
}

func (s *Store) DeleteResource(ctx context.Context, spaceKey, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	key := s.resourceKey(spaceKey, path)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head resource: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, fmt.Errorf("delete resource: %w", err)
	}
	return true, nil
}
