// Package local stores media on the local filesystem. It suits development
// and single-node deployments; objects are streamed through the API.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/pkg/checksum"
)

func init() {
	media.Register("local", func(cfg *config.Config) (media.Store, error) {
		return New(cfg.Media.Local.BasePath)
	})
}

// Store implements media.Store on a directory.
type Store struct {
	basePath string
}

// New creates the base directory if needed.
func New(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local media base_path is required")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve media directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &Store{basePath: abs}, nil
}

// fullPath maps an object path into basePath, rejecting escapes.
func (s *Store) fullPath(p string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(p))
	if full != s.basePath && !strings.HasPrefix(full, s.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid media path: %s", p)
	}
	return full, nil
}

// Upload writes the object, hashing it on the way.
func (s *Store) Upload(_ context.Context, p string, r io.Reader, _ int64) (*media.Object, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	written, sum, err := checksum.Copy(f, r)
	if err != nil {
		_ = os.Remove(full)
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &media.Object{
		Path:     p,
		Size:     written,
		Checksum: sum,
	}, nil
}

// Open opens the object for reading.
func (s *Store) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the object and any directories it leaves empty.
func (s *Store) Delete(_ context.Context, p string) error {
	full, err := s.fullPath(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	for dir := filepath.Dir(full); dir != s.basePath; dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// URL always fails with media.ErrNotSignable.
func (s *Store) URL(context.Context, string, time.Duration) (string, error) {
	return "", media.ErrNotSignable
}

// Exists reports whether the object is present.
func (s *Store) Exists(_ context.Context, p string) (bool, error) {
	full, err := s.fullPath(p)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check file existence: %w", err)
	}
	return true, nil
}
