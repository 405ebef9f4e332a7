// Package oauth binds the authorization server to HTTP: the consent page,
// the token endpoint, server metadata and client registration.
package oauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/middleware"
	authz "github.com/launchpal/launchpal/internal/oauth"
)

// Server is the authorization server behind the handlers.
type Server interface {
	Metadata() authz.Metadata
	ValidateAuthorize(ctx context.Context, req authz.AuthorizeRequest) (*models.OAuthClient, []string, error)
	Approve(ctx context.Context, req authz.AuthorizeRequest, email, password string, consent bool) (string, error)
	Token(ctx context.Context, req authz.TokenRequest) (*authz.TokenResponse, error)
	RegisterClient(ctx context.Context, userID, name string, redirectURIs, scopes []string, confidential bool) (*authz.RegisteredClient, error)
	ListClients(ctx context.Context, userID string) ([]*models.OAuthClient, error)
}

var _ Server = (*authz.Server)(nil)

// Handlers serves the OAuth endpoints.
type Handlers struct {
	srv Server
}

// NewHandlers creates a new Handlers
func NewHandlers(srv Server) *Handlers {
	return &Handlers{srv: srv}
}

// approveForm is the consent form: the original request plus the sign-in.
type approveForm struct {
	authz.AuthorizeRequest
	Email    string `form:"email"`
	Password string `form:"password"`
	Consent  string `form:"consent"`
}

// registerClientRequest is the body of POST /api/oauth/clients.
type registerClientRequest struct {
	Name         string   `json:"name" binding:"required"`
	RedirectURIs []string `json:"redirectUris" binding:"required"`
	Scopes       []string `json:"scopes"`
	Confidential bool     `json:"confidential"`
}

// Metadata serves the RFC 8414 authorization server metadata.
// GET /.well-known/oauth-authorization-server
func (h *Handlers) Metadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Metadata())
}

// Authorize renders the consent page after validating the request.
// GET /oauth/authorize
func (h *Handlers) Authorize(c *gin.Context) {
	var req authz.AuthorizeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		protocolError(c, http.StatusBadRequest, authz.ErrInvalidRequest)
		return
	}
	client, scopes, err := h.srv.ValidateAuthorize(c.Request.Context(), req)
	if err != nil {
		protocolError(c, authorizeStatus(err), err)
		return
	}
	renderConsent(c, http.StatusOK, authz.ConsentPage{ClientName: client.Name, Scopes: scopes, Request: req})
}

// Approve handles the submitted consent form and redirects back to the
// client with a code. Bad credentials re-render the form.
// POST /oauth/authorize
func (h *Handlers) Approve(c *gin.Context) {
	var form approveForm
	if err := c.ShouldBind(&form); err != nil {
		protocolError(c, http.StatusBadRequest, authz.ErrInvalidRequest)
		return
	}

	redirect, err := h.srv.Approve(c.Request.Context(), form.AuthorizeRequest, form.Email, form.Password, form.Consent == "true" || form.Consent == "on")
	switch {
	case errors.Is(err, authz.ErrAccessDenied):
		client, scopes, verr := h.srv.ValidateAuthorize(c.Request.Context(), form.AuthorizeRequest)
		if verr != nil {
			protocolError(c, authorizeStatus(verr), verr)
			return
		}
		renderConsent(c, http.StatusUnauthorized, authz.ConsentPage{
			ClientName: client.Name,
			Scopes:     scopes,
			Error:      "Invalid email or password",
			Request:    form.AuthorizeRequest,
		})
	case err != nil:
		protocolError(c, authorizeStatus(err), err)
	default:
		c.Redirect(http.StatusFound, redirect)
	}
}

// Token exchanges an authorization code or refresh token.
// POST /oauth/token
func (h *Handlers) Token(c *gin.Context) {
	var req authz.TokenRequest
	if err := c.ShouldBind(&req); err != nil {
		protocolError(c, http.StatusBadRequest, authz.ErrInvalidRequest)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	resp, err := h.srv.Token(c.Request.Context(), req)
	if err != nil {
		protocolError(c, authz.StatusCode(err), err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RegisterClient creates an OAuth client for the caller. A confidential
// client's secret is only in this response.
// POST /api/oauth/clients
func (h *Handlers) RegisterClient(c *gin.Context) {
	var req registerClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	client, err := h.srv.RegisterClient(c.Request.Context(), middleware.UserID(c), req.Name, req.RedirectURIs, req.Scopes, req.Confidential)
	if err != nil {
		if code := authz.ErrorCode(err); code != "server_error" {
			apierr.BadRequest(c, describe(err))
			return
		}
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// ListClients returns the caller's OAuth clients.
// GET /api/oauth/clients
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.srv.ListClients(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if clients == nil {
		clients = []*models.OAuthClient{}
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func renderConsent(c *gin.Context, status int, page authz.ConsentPage) {
	var buf bytes.Buffer
	if err := authz.RenderConsent(&buf, page); err != nil {
		slog.Error("render consent page", "error", err)
		c.String(http.StatusInternalServerError, "failed to render authorization page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func protocolError(c *gin.Context, status int, err error) {
	code := authz.ErrorCode(err)
	if code == "server_error" {
		slog.Error("oauth request failed", "path", c.FullPath(), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": code, "error_description": describe(err)})
}

func authorizeStatus(err error) int {
	if authz.ErrorCode(err) == "server_error" {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

// describe strips the protocol code from the front of err's message.
func describe(err error) string {
	msg := err.Error()
	return strings.TrimPrefix(msg, authz.ErrorCode(err)+": ")
}
