// Package billing implements the subscription endpoints and the payment
// provider webhook.
package billing

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/services"
)

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// Billing is the billing service the handlers call.
type Billing interface {
	Get(ctx context.Context, userID string) (*services.Subscription, error)
	Checkout(plan, interval string) (string, error)
	Cancel(ctx context.Context, userID string) (*services.Subscription, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
}

var _ Billing = (*services.BillingService)(nil)

// Handlers serves the billing endpoints.
type Handlers struct {
	billing Billing
}

// NewHandlers creates a new Handlers
func NewHandlers(billing Billing) *Handlers {
	return &Handlers{billing: billing}
}

// CheckoutRequest is the body of POST /api/billing/checkout.
type CheckoutRequest struct {
	Plan     string `json:"plan" binding:"required"`
	Interval string `json:"interval"`
}

// Subscription returns the caller's plan and limits.
// GET /api/billing/subscription
func (h *Handlers) Subscription(c *gin.Context) {
	sub, err := h.billing.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Checkout returns the URL where the caller can buy a plan.
// POST /api/billing/checkout
func (h *Handlers) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "plan is required")
		return
	}
	u, err := h.billing.Checkout(req.Plan, req.Interval)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": u})
}

// Cancel moves the caller back to the free plan.
// POST /api/billing/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	sub, err := h.billing.Cancel(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Webhook applies a signed subscription event.
// POST /webhooks/billing
func (h *Handlers) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		apierr.BadRequest(c, "Failed to read body")
		return
	}
	if err := h.billing.HandleWebhook(c.Request.Context(), body, c.GetHeader(services.SignatureHeader)); err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
