// Package gcs stores media in Google Cloud Storage. Downloads are served from
// V4 signed URLs when the credentials can sign, and streamed otherwise.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	appconfig "github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/pkg/checksum"
)

func init() {
	media.Register("gcs", func(cfg *appconfig.Config) (media.Store, error) {
		return New(context.Background(), &cfg.Media.GCS)
	})
}

// Store implements media.Store on a GCS bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// New creates a GCS store. Credentials come from credentials_file when set,
// otherwise from Application Default Credentials. A custom endpoint (an
// emulator) without a credentials file connects unauthenticated.
func New(ctx context.Context, cfg *appconfig.GCSStorageConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.Endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// Close closes the GCS client
func (s *Store) Close() error {
	return s.client.Close()
}

// Upload streams the object, hashing it on the way.
func (s *Store) Upload(ctx context.Context, path string, r io.Reader, _ int64) (*media.Object, error) {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	written, sum, err := checksum.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return &media.Object{Path: path, Size: written, Checksum: sum}, nil
}

// Open streams the object.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read from GCS: %w", err)
	}
	return r, nil
}

// Delete removes the object. Missing objects are ignored.
func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}
	return nil
}

// URL returns a V4 signed URL. Credentials that cannot sign yield
// media.ErrNotSignable so the caller streams instead.
func (s *Store) URL(_ context.Context, path string, ttl time.Duration) (string, error) {
	u, err := s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", media.ErrNotSignable, err)
	}
	return u, nil
}

// Exists reads the object's attributes.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if _, err := s.client.Bucket(s.bucket).Object(path).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}
	return true, nil
}
