package output

import (
	"context"
	"fmt"
)

// ImageStorageGateway is the interface for storing generated images in
// object storage. Implementations: S3 and a local afero-backed store.
type ImageStorageGateway interface {
	// Store persists image bytes and returns the storage reference.
	Store(ctx context.Context, data []byte, filename, contentType string) (*StoredImage, error)

	// PresignedURL returns a temporary access URL for a stored image.
	PresignedURL(ctx context.Context, storageKey string) (string, error)

	// Delete removes a stored image. Used for cleanup when an entry is
	// deleted or an image is regenerated.
	Delete(ctx context.Context, storageKey string) error
}

// StoredImage describes a successfully stored image.
type StoredImage struct {
	StorageKey string // Object key, e.g. "dreams/2026/08/abc_1024x1024.png"
	URL        string // Access URL (presigned for S3)
	SizeBytes  int64
}

// StorageError wraps a failure of the storage collaborator. Retryable.
type StorageError struct {
	Op    string // "store", "presign" or "delete"
	Key   string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }
