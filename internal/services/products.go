package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/internal/platform"
)

// CreateProductInput is the data for a new product.
type CreateProductInput struct {
	Platform    string   `json:"platform"`
	Name        string   `json:"name"`
	Tagline     string   `json:"tagline"`
	Description string   `json:"description"`
	Website     string   `json:"website"`
	Media       []string `json:"media"`
	Topics      []string `json:"topics"`
}

func (in *CreateProductInput) validate() error {
	var missing []string
	for field, v := range map[string]string{
		"platform": in.Platform, "name": in.Name, "tagline": in.Tagline,
		"description": in.Description, "website": in.Website,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// UpdateProductInput holds optional product changes. Nil fields are left as is.
type UpdateProductInput struct {
	Name        *string   `json:"name"`
	Tagline     *string   `json:"tagline"`
	Description *string   `json:"description"`
	Website     *string   `json:"website"`
	Media       *[]string `json:"media"`
	Topics      *[]string `json:"topics"`
}

// CreatedProduct is returned by ProductService.Create.
type CreatedProduct struct {
	ID         string `json:"id"`
	PlatformID string `json:"platformId"`
	URL        string `json:"url"`
}

// ProductService manages products and mirrors them onto their platform.
type ProductService struct {
	products ProductStore
	launches LaunchStore
	users    UserStore
	creds    *CredentialService
	meter    *Meter
	media    *media.Library
}

// NewProductService creates a new ProductService. lib may be nil when media
// uploads are disabled.
func NewProductService(products ProductStore, launches LaunchStore, users UserStore, creds *CredentialService, meter *Meter, lib *media.Library) *ProductService {
	return &ProductService{products: products, launches: launches, users: users, creds: creds, meter: meter, media: lib}
}

// Create meters the call, creates the product on its platform and stores a
// local copy. A platform success followed by a local write failure is not
// compensated.
func (s *ProductService) Create(ctx context.Context, userID string, in CreateProductInput) (*CreatedProduct, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.meter.Track(ctx, userID, EndpointProductsCreate); err != nil {
		return nil, err
	}
	if err := s.checkProductLimit(ctx, userID); err != nil {
		return nil, err
	}

	adapter, err := s.creds.ActiveAdapter(ctx, userID, in.Platform)
	if err != nil {
		return nil, err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		return nil, err
	}
	created, err := adapter.CreateProduct(ctx, platform.ProductDraft{
		Name:        in.Name,
		Tagline:     in.Tagline,
		Description: in.Description,
		Website:     in.Website,
		Media:       nonNil(in.Media),
		Topics:      nonNil(in.Topics),
	})
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		UserID:      userID,
		Platform:    in.Platform,
		PlatformID:  created.PlatformID,
		Name:        in.Name,
		Tagline:     in.Tagline,
		Description: in.Description,
		Website:     in.Website,
		URL:         created.URL,
		Media:       nonNil(in.Media),
		Topics:      nonNil(in.Topics),
		Metadata:    models.JSONMap{},
	}
	if err := s.products.Create(ctx, p); err != nil {
		slog.Error("product created on platform but not stored", "user_id", userID,
			"platform", in.Platform, "platform_id", created.PlatformID, "error", err)
		return nil, fmt.Errorf("store product: %w", err)
	}
	return &CreatedProduct{ID: p.ID, PlatformID: p.PlatformID, URL: p.URL}, nil
}

func (s *ProductService) checkProductLimit(ctx context.Context, userID string) error {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	n, err := s.products.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if n >= user.ProductLimit {
		return fmt.Errorf("%w: product limit reached (%d)", ErrQuotaExceeded, user.ProductLimit)
	}
	return nil
}

// List returns the user's products, optionally for one platform.
func (s *ProductService) List(ctx context.Context, userID, platformID string) ([]*models.Product, error) {
	return s.products.List(ctx, userID, platformID)
}

// Get returns a product owned by userID.
func (s *ProductService) Get(ctx context.Context, userID, id string) (*models.Product, error) {
	p, err := s.products.GetForOwner(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: Product not found", ErrNotFound)
	}
	return p, nil
}

// Update applies the non-nil fields. The platform id never changes.
func (s *ProductService) Update(ctx context.Context, userID, id string, in UpdateProductInput) (*models.Product, error) {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Tagline != nil {
		p.Tagline = *in.Tagline
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Website != nil {
		p.Website = *in.Website
	}
	if in.Media != nil {
		p.Media = nonNil(*in.Media)
	}
	if in.Topics != nil {
		p.Topics = nonNil(*in.Topics)
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Delete removes a product that has no launches in any status.
func (s *ProductService) Delete(ctx context.Context, userID, id string) error {
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	n, err := s.launches.CountByProduct(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("count launches: %w", err)
	}
	if n > 0 {
		return ErrProductHasLaunches
	}
	deleted, err := s.products.Delete(ctx, p.ID, userID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: Product not found", ErrNotFound)
	}
	return nil
}

// AttachMedia uploads an image and appends its URL to the product's media.
func (s *ProductService) AttachMedia(ctx context.Context, userID, id, filename string, r io.Reader, size int64) (*models.Product, error) {
	if s.media == nil {
		return nil, fmt.Errorf("%w: media uploads are not configured", ErrValidation)
	}
	p, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.media.Put(ctx, userID, p.ID, filename, r, size)
	if err != nil {
		if errors.Is(err, media.ErrRejected) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("store media: %w", err)
	}
	p.Media = append(p.Media, obj.URL)
	if err := s.products.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
