package storage

import "context"

// BlobStore is the key-addressed object store the pipeline reads source
// documents from and optionally writes derived artifacts to.
type BlobStore interface {
	// Fetch downloads the bytes behind a ref ("gs://bucket/object" or a
	// bare object name resolved against the default bucket).
	Fetch(ctx context.Context, ref string) ([]byte, error)
	// Put uploads data under the given object name and returns the full ref.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
