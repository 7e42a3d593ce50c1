package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStore implements BlobStore on top of Google Cloud Storage. It assumes
// Application Default Credentials are configured.
type GCSStore struct {
	client *gcs.Client
	bucket string
	logger *zap.Logger
}

func NewGCSStore(ctx context.Context, bucket string, logger *zap.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage bucket is not configured")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		logger: logger,
	}, nil
}

func (s *GCSStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	bucket, object, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object reader %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}

	return data, nil
}

func (s *GCSStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy to object writer: %w", err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	ref := fmt.Sprintf("gs://%s/%s", s.bucket, name)
	s.logger.Debug("Blob stored",
		zap.String("ref", ref),
		zap.Int("size", len(data)),
	)
	return ref, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}

// resolve splits a "gs://bucket/object" ref, falling back to the configured
// bucket for bare object names.
func (s *GCSStore) resolve(ref string) (bucket, object string, err error) {
	if !strings.HasPrefix(ref, "gs://") {
		if ref == "" {
			return "", "", fmt.Errorf("empty blob ref")
		}
		return s.bucket, ref, nil
	}

	trimmed := strings.TrimPrefix(ref, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid blob ref (no object path): %s", ref)
	}
	return parts[0], parts[1], nil
}
