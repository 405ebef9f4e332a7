// Package account implements sign-up, sign-in and the caller's own account
// endpoints: profile, API key and usage.
package account

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/auth/oidc"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/services"
)

// Accounts is the account service the handlers call.
type Accounts interface {
	Register(ctx context.Context, email, password, name string) (*services.Session, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	LoginOIDC(ctx context.Context, id *oidc.Identity) (*services.Session, error)
	Profile(ctx context.Context, userID string) (*services.Profile, error)
	RegenerateAPIKey(ctx context.Context, userID string) (string, error)
}

// UsageReporter summarizes metered usage.
type UsageReporter interface {
	Stats(ctx context.Context, userID string, from, to time.Time) (*services.UsageStats, error)
}

// IdentityProvider is an OIDC issuer.
type IdentityProvider interface {
	AuthURL(state string) string
	Authenticate(ctx context.Context, code string) (*oidc.Identity, error)
}

var (
	_ Accounts         = (*services.AccountService)(nil)
	_ UsageReporter    = (*services.Meter)(nil)
	_ IdentityProvider = (*oidc.Provider)(nil)
)

// Handlers serves the account endpoints.
type Handlers struct {
	accounts Accounts
	usage    UsageReporter
	sso      IdentityProvider
	states   *oidc.StateStore
}

// NewHandlers creates a new Handlers. sso may be nil when OIDC is disabled.
func NewHandlers(accounts Accounts, usage UsageReporter, sso IdentityProvider) *Handlers {
	return &Handlers{
		accounts: accounts,
		usage:    usage,
		sso:      sso,
		states:   oidc.NewStateStore(10 * time.Minute),
	}
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register creates an account and returns a session with its first API key.
// POST /auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "email and password are required")
		return
	}
	sess, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// Login returns a session token for valid credentials.
// POST /auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "email and password are required")
		return
	}
	sess, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// OIDCLogin redirects to the identity provider.
// GET /auth/oidc/login
func (h *Handlers) OIDCLogin(c *gin.Context) {
	if h.sso == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Single sign-on is not enabled"})
		return
	}
	state, err := auth.RandomToken(24)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	h.states.Put(state)
	c.Redirect(http.StatusFound, h.sso.AuthURL(state))
}

// OIDCCallback completes single sign-on and returns a session.
// GET /auth/oidc/callback?code=...&state=...
func (h *Handlers) OIDCCallback(c *gin.Context) {
	if h.sso == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Single sign-on is not enabled"})
		return
	}
	if e := c.Query("error"); e != "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in was cancelled", "details": e})
		return
	}
	if !h.states.Take(c.Query("state")) {
		apierr.BadRequest(c, "Invalid or expired state. Please try signing in again.")
		return
	}
	code := c.Query("code")
	if code == "" {
		apierr.BadRequest(c, "Missing authorization code")
		return
	}

	id, err := h.sso.Authenticate(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign-in failed", "details": err.Error()})
		return
	}
	sess, err := h.accounts.LoginOIDC(c.Request.Context(), id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Me returns the caller's profile with this month's usage.
// GET /api/me
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.accounts.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// RegenerateAPIKey revokes the caller's keys and returns a new one. The key
// is only shown here.
// POST /api/me/api-key
func (h *Handlers) RegenerateAPIKey(c *gin.Context) {
	key, err := h.accounts.RegenerateAPIKey(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"apiKey": key})
}

// Usage reports metered usage. startDate and endDate accept RFC 3339 or
// YYYY-MM-DD and default to the current month.
// GET /api/usage
func (h *Handlers) Usage(c *gin.Context) {
	from, err := parseDate(c.Query("startDate"))
	if err != nil {
		apierr.BadRequest(c, "Invalid startDate")
		return
	}
	to, err := parseDate(c.Query("endDate"))
	if err != nil {
		apierr.BadRequest(c, "Invalid endDate")
		return
	}
	stats, err := h.usage.Stats(c.Request.Context(), middleware.UserID(c), from, to)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(time.DateOnly, s, time.Local)
}
