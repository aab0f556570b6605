package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rbright/proctor/internal/config"
)

// Minio uploads blobs to an S3-compatible bucket.
type Minio struct {
	client        *minio.Client
	bucket        string
	baseURL       string
	publicBaseURL string
}

// NewMinio builds a client for cfg.Endpoint. No request is made until
// the first upload or ping.
func NewMinio(cfg config.StorageConfig) (*Minio, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio bucket is empty")
	}

	// Empty keys sign anonymously.
	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Minio{
		client:        client,
		bucket:        cfg.Bucket,
		baseURL:       client.EndpointURL().String(),
		publicBaseURL: strings.TrimSpace(cfg.PublicBaseURL),
	}, nil
}

func (m *Minio) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", key, err)
	}

	if m.publicBaseURL != "" {
		return joinURL(m.publicBaseURL, key)
	}
	return joinURL(m.baseURL, m.bucket+"/"+key)
}

func (m *Minio) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *Minio) Ping(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", m.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", m.bucket)
	}
	return nil
}
