package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/kalinpl/dreamlog/internal/application/port/output"
)

// LocalImageStorage implements ImageStorageGateway on a local
// filesystem via afero. Useful for development and for tests that need
// a real store without S3. URLs are file:// paths; there is no expiry.
type LocalImageStorage struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewLocalImageStorage creates a filesystem-backed image store rooted
// at dir.
func NewLocalImageStorage(fs afero.Fs, dir string) *LocalImageStorage {
	return &LocalImageStorage{fs: fs, root: dir, now: time.Now}
}

func (g *LocalImageStorage) Store(ctx context.Context, data []byte, filename, contentType string) (*output.StoredImage, error) {
	now := g.now().UTC()
	key := strings.Join([]string{
		"dreams",
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		filename,
	}, "/")

	path := filepath.Join(g.root, filepath.FromSlash(key))
	if err := g.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &output.StorageError{Op: "store", Key: key, Cause: err}
	}
	if err := afero.WriteFile(g.fs, path, data, 0644); err != nil {
		return nil, &output.StorageError{Op: "store", Key: key, Cause: err}
	}

	return &output.StoredImage{
		StorageKey: key,
		URL:        "file://" + filepath.ToSlash(path),
		SizeBytes:  int64(len(data)),
	}, nil
}

func (g *LocalImageStorage) PresignedURL(ctx context.Context, storageKey string) (string, error) {
	path := filepath.Join(g.root, filepath.FromSlash(storageKey))
	exists, err := afero.Exists(g.fs, path)
	if err != nil {
		return "", &output.StorageError{Op: "presign", Key: storageKey, Cause: err}
	}
	if !exists {
		return "", &output.StorageError{Op: "presign", Key: storageKey, Cause: fmt.Errorf("no such image")}
	}
	return "file://" + filepath.ToSlash(path), nil
}

func (g *LocalImageStorage) Delete(ctx context.Context, storageKey string) error {
	path := filepath.Join(g.root, filepath.FromSlash(storageKey))
	if err := g.fs.Remove(path); err != nil {
		exists, statErr := afero.Exists(g.fs, path)
		if statErr == nil && !exists {
			return nil
		}
		return &output.StorageError{Op: "delete", Key: storageKey, Cause: err}
	}
	return nil
}
