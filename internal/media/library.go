package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/launchpal/launchpal/internal/config"
)

// Policy limits what may be uploaded.
type Policy struct {
	MaxFileSize    int64
	AllowedFormats []string
}

// Check validates an upload's extension and declared size. A negative size
// means unknown and is enforced while streaming instead.
func (p Policy) Check(filename string, size int64) error {
	ext := Ext(filename)
	allowed := false
	for _, f := range p.AllowedFormats {
		if strings.EqualFold(f, ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: unsupported format %q (allowed: %s)", ErrRejected, ext, strings.Join(p.AllowedFormats, ", "))
	}
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return fmt.Errorf("%w: file is %d bytes, limit is %d", ErrRejected, size, p.MaxFileSize)
	}
	return nil
}

// Ext returns the lower-cased extension of filename without the dot.
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(filename), "."))
}

// ObjectPath returns the storage path for a new product image.
func ObjectPath(ownerID, productID, filename string) string {
	return path.Join("products", ownerID, productID, uuid.New().String()+"."+Ext(filename))
}

// Library applies the upload policy in front of a Store and assigns public URLs.
type Library struct {
	store     Store
	policy    Policy
	publicURL string
	urlTTL    time.Duration
}

// NewLibrary wraps store. publicURL is the API's external base URL.
func NewLibrary(store Store, policy Policy, publicURL string, urlTTL time.Duration) *Library {
	return &Library{store: store, policy: policy, publicURL: strings.TrimSuffix(publicURL, "/"), urlTTL: urlTTL}
}

// NewLibraryFromConfig builds the configured backend and wraps it.
func NewLibraryFromConfig(cfg *config.Config) (*Library, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return NewLibrary(store, Policy{
		MaxFileSize:    cfg.Media.MaxFileSize,
		AllowedFormats: cfg.Media.AllowedFormats,
	}, cfg.Server.GetPublicURL(), cfg.Media.URLTTL), nil
}

// Put validates and stores a product image. size may be -1 when unknown.
func (l *Library) Put(ctx context.Context, ownerID, productID, filename string, r io.Reader, size int64) (*Object, error) {
	if err := l.policy.Check(filename, size); err != nil {
		return nil, err
	}
	if l.policy.MaxFileSize > 0 {
		r = &limitedReader{r: r, remaining: l.policy.MaxFileSize}
	}

	p := ObjectPath(ownerID, productID, filename)
	obj, err := l.store.Upload(ctx, p, r, size)
	if err != nil {
		if errors.Is(err, ErrRejected) {
			_ = l.store.Delete(ctx, p)
		}
		return nil, err
	}
	obj.URL = l.publicURL + "/media/" + p
	return obj, nil
}

// Resolve returns either a signed URL to redirect to, or a reader to stream
// when the backend cannot sign URLs.
func (l *Library) Resolve(ctx context.Context, objectPath string) (string, io.ReadCloser, error) {
	objectPath = strings.TrimPrefix(path.Clean("/"+objectPath), "/")
	if !strings.HasPrefix(objectPath, "products/") {
		return "", nil, ErrNotFound
	}
	ok, err := l.store.Exists(ctx, objectPath)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, ErrNotFound
	}

	u, err := l.store.URL(ctx, objectPath, l.urlTTL)
	if err == nil {
		return u, nil, nil
	}
	if !errors.Is(err, ErrNotSignable) {
		return "", nil, err
	}
	rc, err := l.store.Open(ctx, objectPath)
	if err != nil {
		return "", nil, err
	}
	return "", rc, nil
}

// Ping checks that the backend answers, using a path that never exists.
func (l *Library) Ping(ctx context.Context) error {
	_, err := l.store.Exists(ctx, ".readiness-probe")
	return err
}

// limitedReader fails with ErrRejected once more than remaining bytes are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, fmt.Errorf("%w: file exceeds size limit", ErrRejected)
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("%w: file exceeds size limit", ErrRejected)
	}
	return n, err
}
