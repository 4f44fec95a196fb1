package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinioArtifactStore holds raw artifacts (uploads, exported audio) in one
// MinIO bucket. Everything else refers to artifacts by object name only; a
// download resolves the name through here with its own access check upstream.
type MinioArtifactStore struct {
	client *minio.Client
	bucket string
}

// NewMinioArtifactStore creates the store and makes sure its bucket exists.
func NewMinioArtifactStore(ctx context.Context, client *minio.Client, bucket string) (*MinioArtifactStore, error) {
	found, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", bucket, err)
	}
	if !found {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", bucket, err)
		}
	}
	return &MinioArtifactStore{client: client, bucket: bucket}, nil
}

// Put stores one artifact.
func (s *MinioArtifactStore) Put(ctx context.Context, objectName, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store object %q: %w", objectName, err)
	}
	return nil
}

// Get fetches one artifact's bytes.
func (s *MinioArtifactStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object %q: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", objectName, err)
	}
	return data, nil
}

// Delete removes one artifact.
func (s *MinioArtifactStore) Delete(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

var _ ArtifactStore = (*MinioArtifactStore)(nil)
