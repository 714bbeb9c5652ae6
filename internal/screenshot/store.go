// Package screenshot provides the object-store collaborator that holds
// raw screenshots. The pipeline only ever sees resolved base64 image
// data; lookup by storage key happens here, upstream of the stages.
package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store is the screenshot object store.
type Store interface {
	// Put uploads a screenshot under key.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// GetBase64 fetches the screenshot at key and returns it
	// base64-encoded, ready to embed as image_data.
	GetBase64(ctx context.Context, key string) (string, error)
}

// Config configures the MinIO-backed store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore is an S3-compatible implementation of Store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects to the object store described by cfg.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("failed to upload screenshot %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) GetBase64(ctx context.Context, key string) (string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to fetch screenshot %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("failed to read screenshot %s: %w", key, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
