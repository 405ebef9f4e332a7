// Package middleware provides the Gin middleware chain for the LaunchPal API.
//
// Order is fixed in internal/api/router.go:
//
//	Recovery → RequestID → Metrics → Logger → CORS → SecurityHeaders → RateLimit → Auth → Handler
//
// Rate limiting runs before auth so brute-force attempts are rejected before any
// database work. Auth stores the caller's identity and scopes in the gin context;
// RequireScope reads them back.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/safego"
)

// Context keys set by AuthMiddleware.
const (
	UserKey       = "user"
	UserIDKey     = "user_id"
	ScopesKey     = "scopes"
	AuthMethodKey = "auth_method"
	APIKeyIDKey   = "api_key_id"
	ClientIDKey   = "oauth_client_id"
)

// Authentication methods recorded under AuthMethodKey.
const (
	AuthMethodSession = "jwt"
	AuthMethodOAuth   = "oauth"
	AuthMethodAPIKey  = "api_key"
)

// UserLoader loads the account behind a credential.
type UserLoader interface {
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

// APIKeyLoader finds candidate keys by display prefix.
type APIKeyLoader interface {
	GetAPIKeysByPrefix(ctx context.Context, keyPrefix string) ([]*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID string) error
}

// AuthMiddleware accepts either a JWT (session or OAuth access token) or an
// API key as a bearer token.
func AuthMiddleware(users UserLoader, keys APIKeyLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		ctx := c.Request.Context()

		// JWTs verify without a database round-trip, so try them first.
		if claims, err := auth.ValidateJWT(token); err == nil {
			user, err := users.GetUserByID(ctx, claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
				return
			}
			if user == nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
				return
			}
			setIdentity(c, user, claims.Scopes)
			if claims.TokenType == auth.TokenTypeAccess {
				c.Set(AuthMethodKey, AuthMethodOAuth)
				c.Set(ClientIDKey, claims.ClientID)
			} else {
				c.Set(AuthMethodKey, AuthMethodSession)
			}
			c.Next()
			return
		}

		apiKey, err := authenticateAPIKey(ctx, token, keys)
		if err != nil {
			slog.Error("api key lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
			return
		}
		if apiKey == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}
		if apiKey.IsExpired(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key expired"})
			return
		}

		user, err := users.GetUserByID(ctx, apiKey.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return
		}

		// Best effort; a lost last-used update is not worth a slower request.
		keyID := apiKey.ID
		safego.Go("api-key-last-used", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := keys.UpdateLastUsed(ctx, keyID); err != nil {
				slog.Debug("failed to update api key last used", "key_id", keyID, "error", err)
			}
		})

		setIdentity(c, user, apiKey.Scopes)
		c.Set(AuthMethodKey, AuthMethodAPIKey)
		c.Set(APIKeyIDKey, apiKey.ID)
		c.Next()
	}
}

func setIdentity(c *gin.Context, user *models.User, scopes []string) {
	if scopes == nil {
		scopes = []string{}
	}
	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(ScopesKey, scopes)
}

// authenticateAPIKey narrows candidates by the stored plaintext prefix, then
// runs bcrypt only on those rows.
func authenticateAPIKey(ctx context.Context, providedKey string, keys APIKeyLoader) (*models.APIKey, error) {
	candidates, err := keys.GetAPIKeysByPrefix(ctx, auth.DisplayPrefix(providedKey))
	if err != nil {
		return nil, err
	}
	for _, key := range candidates {
		if auth.ValidateAPIKey(providedKey, key.KeyHash) {
			return key, nil
		}
	}
	return nil, nil
}

// RequireScope aborts with 403 unless the authenticated caller holds scope.
func RequireScope(scope auth.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		scopes, ok := c.Get(ScopesKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		userScopes, _ := scopes.([]string)
		if !auth.HasScope(userScopes, scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Missing required scope",
				"details": "Required scope: " + string(scope),
			})
			return
		}
		c.Next()
	}
}

// RequireMethodScope requires read for safe methods and write for everything else.
func RequireMethodScope() gin.HandlerFunc {
	read, write := RequireScope(auth.ScopeRead), RequireScope(auth.ScopeWrite)
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			read(c)
		default:
			write(c)
		}
	}
}

// UserID returns the authenticated user's id.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}
