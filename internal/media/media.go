// Package media stores product images. Backends (local disk, S3, Azure Blob
// Storage, Google Cloud Storage) implement Store and register themselves with
// the factory from init; the server blank-imports the ones it ships.
package media

import (
	"context"
	"io"
	"time"
)

// Store is a blob store for media objects addressed by slash-separated paths.
type Store interface {
	// Upload writes the object and returns its size and SHA-256.
	Upload(ctx context.Context, path string, r io.Reader, size int64) (*Object, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
	// URL returns a time-limited download URL. Backends that cannot sign
	// URLs return ErrNotSignable and are served through the API instead.
	URL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Object describes a stored media object.
type Object struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	// URL is the public URL the object is served at.
	URL string `json:"url"`
}
