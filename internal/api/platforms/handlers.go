// Package platforms implements the launch platform endpoints: the catalog,
// connecting credentials, launch timing advice, trending products and
// hunter search.
package platforms

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/analytics"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/services"
)

// Connections manages a user's platform credentials.
type Connections interface {
	List(ctx context.Context, userID string) ([]services.PlatformStatus, error)
	Connect(ctx context.Context, userID, platformID string, credentials map[string]string) (string, error)
	Disconnect(ctx context.Context, userID, platformID string) error
}

// TrendingLister lists popular products and hunters on a platform.
type TrendingLister interface {
	Trending(ctx context.Context, userID, platformID, period string, limit int) ([]platform.TrendingProduct, error)
	Hunters(ctx context.Context, userID, platformID, topic string, minFollowers int) ([]platform.Hunter, error)
}

var (
	_ Connections    = (*services.CredentialService)(nil)
	_ TrendingLister = (*services.TrendingService)(nil)
)

// Handlers serves the platform endpoints.
type Handlers struct {
	conns    Connections
	trending TrendingLister
}

// NewHandlers creates a new Handlers
func NewHandlers(conns Connections, trending TrendingLister) *Handlers {
	return &Handlers{conns: conns, trending: trending}
}

// List returns every catalog platform with the caller's connection status.
// GET /api/platforms
func (h *Handlers) List(c *gin.Context) {
	list, err := h.conns.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Connect stores credentials for a platform. The body is the credential
// object itself, e.g. {"clientId": "...", "clientSecret": "..."}.
// POST /api/platforms/:platform/connect
func (h *Handlers) Connect(c *gin.Context) {
	creds := map[string]string{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&creds); err != nil {
			apierr.BadRequest(c, "Credentials must be a JSON object of strings")
			return
		}
	}
	msg, err := h.conns.Connect(c.Request.Context(), middleware.UserID(c), c.Param("platform"), creds)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// Disconnect deactivates the caller's credentials for a platform.
// POST /api/platforms/:platform/disconnect
func (h *Handlers) Disconnect(c *gin.Context) {
	id := c.Param("platform")
	if err := h.conns.Disconnect(c.Request.Context(), middleware.UserID(c), id); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Disconnected from " + id})
}

// Timing recommends a launch slot for an audience (US, EU, ASIA, GLOBAL).
// GET /api/platforms/:platform/timing
func (h *Handlers) Timing(c *gin.Context) {
	id := c.Param("platform")
	if !platform.IsKnown(id) {
		apierr.BadRequest(c, "unknown platform: "+id)
		return
	}
	c.JSON(http.StatusOK, analytics.OptimalTiming(c.Query("audience")))
}

// Trending lists the top products on a platform using the caller's
// credentials.
// GET /api/trending?platform=producthunt&period=day&limit=10
func (h *Handlers) Trending(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			apierr.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}
	products, err := h.trending.Trending(c.Request.Context(), middleware.UserID(c), c.Query("platform"), c.Query("period"), limit)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if products == nil {
		products = []platform.TrendingProduct{}
	}
	c.JSON(http.StatusOK, products)
}

// Hunters finds hunters active in a topic.
// GET /api/hunters?platform=producthunt&topic=developer-tools&minFollowers=1000
func (h *Handlers) Hunters(c *gin.Context) {
	minFollowers := 0
	if s := c.Query("minFollowers"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			apierr.BadRequest(c, "minFollowers must be a non-negative integer")
			return
		}
		minFollowers = n
	}
	hunters, err := h.trending.Hunters(c.Request.Context(), middleware.UserID(c), c.Query("platform"), c.Query("topic"), minFollowers)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if hunters == nil {
		hunters = []platform.Hunter{}
	}
	c.JSON(http.StatusOK, hunters)
}
