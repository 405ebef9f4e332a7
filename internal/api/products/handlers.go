// Package products implements the product endpoints, including image uploads.
package products

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/services"
)

// Products is the product service the handlers call.
type Products interface {
	Create(ctx context.Context, userID string, in services.CreateProductInput) (*services.CreatedProduct, error)
	List(ctx context.Context, userID, platformID string) ([]*models.Product, error)
	Get(ctx context.Context, userID, id string) (*models.Product, error)
	Update(ctx context.Context, userID, id string, in services.UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, userID, id string) error
	AttachMedia(ctx context.Context, userID, id, filename string, r io.Reader, size int64) (*models.Product, error)
}

var _ Products = (*services.ProductService)(nil)

// Handlers serves the product endpoints.
type Handlers struct {
	products Products
}

// NewHandlers creates a new Handlers
func NewHandlers(products Products) *Handlers {
	return &Handlers{products: products}
}

// Create registers a product on its platform and stores it locally.
// POST /api/products
func (h *Handlers) Create(c *gin.Context) {
	var in services.CreateProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	created, err := h.products.Create(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List returns the caller's products, optionally for one platform.
// GET /api/products?platform=producthunt
func (h *Handlers) List(c *gin.Context) {
	list, err := h.products.List(c.Request.Context(), middleware.UserID(c), c.Query("platform"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if list == nil {
		list = []*models.Product{}
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one product.
// GET /api/products/:id
func (h *Handlers) Get(c *gin.Context) {
	p, err := h.products.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update changes the editable fields of a product.
// PUT /api/products/:id
func (h *Handlers) Update(c *gin.Context) {
	var in services.UpdateProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		apierr.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	p, err := h.products.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), in)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Delete removes a product that has no launches.
// DELETE /api/products/:id
func (h *Handlers) Delete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UploadMedia stores an image from the multipart field "file" and appends its
// URL to the product's media.
// POST /api/products/:id/media
func (h *Handlers) UploadMedia(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		apierr.BadRequest(c, "Missing file")
		return
	}
	f, err := fh.Open()
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	defer f.Close()

	p, err := h.products.AttachMedia(c.Request.Context(), middleware.UserID(c), c.Param("id"), fh.Filename, f, fh.Size)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}
