// Package api wires together all HTTP routes for the LaunchPal backend.
//
// Route groups:
//   - /auth and /oauth are public and sit behind the stricter auth rate limit.
//   - /api requires a session JWT, an OAuth access token or an API key. Safe
//     methods need the read scope and mutations need write.
//   - /webhooks/billing authenticates by HMAC signature instead of a bearer.
//   - /health, /ready, /version and /media are unauthenticated.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/launchpal/launchpal/internal/analytics"
	"github.com/launchpal/launchpal/internal/audit"
	"github.com/launchpal/launchpal/internal/api/account"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/api/billing"
	"github.com/launchpal/launchpal/internal/api/launches"
	oauthapi "github.com/launchpal/launchpal/internal/api/oauth"
	"github.com/launchpal/launchpal/internal/api/platforms"
	"github.com/launchpal/launchpal/internal/api/products"
	"github.com/launchpal/launchpal/internal/auth/oidc"
	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/crypto"
	"github.com/launchpal/launchpal/internal/db/repositories"
	"github.com/launchpal/launchpal/internal/jobs"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/oauth"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/platform/producthunt"
	"github.com/launchpal/launchpal/internal/services"

	// Media backends register themselves by name.
	_ "github.com/launchpal/launchpal/internal/media/azure"
	_ "github.com/launchpal/launchpal/internal/media/gcs"
	_ "github.com/launchpal/launchpal/internal/media/local"
	_ "github.com/launchpal/launchpal/internal/media/s3"
)

// Version is reported by GET /version. Release builds set it with -ldflags.
var Version = "dev"

// BackgroundServices holds references to background jobs and resources that must
// be stopped during graceful shutdown. The caller (cmd/server) is responsible for
// calling Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	launchExecutor *jobs.LaunchExecutor
	metricsPoller  *jobs.MetricsPoller
	codeSweeper    *jobs.CodeSweeper
	auditPruner    *jobs.AuditPruner
	auditRecorder  *audit.Recorder
	rateLimiters   []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the HTTP
// server has been shut down so that in-flight requests are drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.launchExecutor != nil {
		bg.launchExecutor.Stop()
	}
	if bg.metricsPoller != nil {
		bg.metricsPoller.Stop()
	}
	if bg.codeSweeper != nil {
		bg.codeSweeper.Stop()
	}
	if bg.auditPruner != nil {
		bg.auditPruner.Stop()
	}
	if bg.auditRecorder != nil {
		if err := bg.auditRecorder.Close(); err != nil {
			slog.Warn("audit shippers did not close cleanly", "error", err)
		}
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter builds the service graph and registers every route. rdb may be
// nil when redis.enabled is false; rate limits and analytics history then
// stay in process.
func NewRouter(ctx context.Context, cfg *config.Config, db *sql.DB, rdb redis.UniversalClient) (*gin.Engine, *BackgroundServices, error) {
	bg := &BackgroundServices{}

	cipher, err := crypto.FromKeyMaterial(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token cipher: %w", err)
	}
	library, err := media.NewLibraryFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize media storage: %w", err)
	}
	slog.Info("media storage initialized", "backend", cfg.Media.Backend)

	retention := time.Duration(cfg.Analytics.RetentionDays) * 24 * time.Hour
	history, err := analytics.NewStore(cfg.Analytics.Store, rdb, retention)
	if err != nil {
		return nil, nil, err
	}
	tracker := analytics.NewTracker(history)

	// Repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	userRepo := repositories.NewUserRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(sqlxDB)
	usageRepo := repositories.NewUsageRepository(sqlxDB)
	credRepo := repositories.NewCredentialRepository(sqlxDB)
	productRepo := repositories.NewProductRepository(sqlxDB)
	launchRepo := repositories.NewLaunchRepository(sqlxDB)
	oauthRepo := repositories.NewOAuthRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(sqlxDB)

	// Platform adapters get their endpoints and timeout from config.
	registry := platform.NewRegistry()
	producthunt.Register(registry, producthunt.Options{
		APIURL:   cfg.Platforms.ProductHunt.APIURL,
		TokenURL: cfg.Platforms.ProductHunt.TokenURL,
		Timeout:  cfg.Platforms.RequestTimeout,
	})

	// Services
	meter := services.NewMeter(userRepo, usageRepo)
	accountSvc := services.NewAccountService(userRepo, apiKeyRepo, meter, cfg.Auth.APIKeys.Prefix, cfg.Auth.JWTTTL)
	credSvc := services.NewCredentialService(credRepo, userRepo, meter, cipher, registry)
	trendingSvc := services.NewTrendingService(credSvc)
	productSvc := services.NewProductService(productRepo, launchRepo, userRepo, credSvc, meter, library)
	launchSvc := services.NewLaunchService(launchRepo, productRepo, credSvc, meter, tracker)
	billingSvc := services.NewBillingService(userRepo, cfg.Billing.CheckoutURL, cfg.Billing.WebhookSecret)
	auditSvc := services.NewAuditService(auditRepo)

	authServer := oauth.NewServer(oauthRepo, accountSvc, oauth.Config{
		Issuer:          cfg.Server.GetPublicURL(),
		CodeTTL:         cfg.Auth.OAuth.CodeTTL,
		AccessTokenTTL:  cfg.Auth.OAuth.AccessTokenTTL,
		RefreshTokenTTL: cfg.Auth.OAuth.RefreshTokenTTL,
	})

	// OIDC discovery failure is not fatal; password login keeps working.
	var sso account.IdentityProvider
	if cfg.Auth.OIDC.Enabled {
		provider, err := oidc.NewProvider(ctx, &cfg.Auth.OIDC)
		if err != nil {
			slog.Warn("OIDC provider unavailable, single sign-on disabled", "error", err)
		} else {
			sso = provider
		}
	}

	// Background jobs
	if cfg.Jobs.LaunchExecutor.Enabled {
		bg.launchExecutor = jobs.NewLaunchExecutor(launchSvc, cfg.Jobs.LaunchExecutor.Interval, cfg.Jobs.LaunchExecutor.CompletionWindow)
		bg.launchExecutor.Start(ctx)
	}
	if cfg.Jobs.MetricsPoller.Enabled {
		bg.metricsPoller = jobs.NewMetricsPoller(launchSvc, cfg.Jobs.MetricsPoller.Interval)
		bg.metricsPoller.Start(ctx)
	}
	bg.codeSweeper = jobs.NewCodeSweeper(oauthRepo, time.Hour, cfg.Auth.OAuth.CodeTTL)
	bg.codeSweeper.Start(ctx)

	// Audit trail
	var auditMiddleware gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Audit.Enabled {
		var shipper audit.Shipper
		ms, err := audit.NewMultiShipper(cfg.Audit.Shippers)
		if err != nil {
			bg.Shutdown()
			return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
		}
		if ms != nil {
			shipper = ms
		}
		bg.auditRecorder = audit.NewRecorder(auditSvc, shipper)
		auditMiddleware = middleware.AuditMiddleware(bg.auditRecorder, cfg.Audit.LogFailedRequests)
		if cfg.Audit.RetentionDays > 0 {
			bg.auditPruner = jobs.NewAuditPruner(auditRepo, 24*time.Hour, time.Duration(cfg.Audit.RetentionDays)*24*time.Hour)
			bg.auditPruner.Start(ctx)
		}
	}

	// Rate limiters
	apiLimit := middleware.DefaultRateLimitConfig()
	if rl := cfg.Security.RateLimiting; rl.RequestsPerMinute > 0 {
		apiLimit.RequestsPerMinute = rl.RequestsPerMinute
		if rl.Burst > 0 {
			apiLimit.BurstSize = rl.Burst
		}
	}
	newLimiter := func(prefix string, limit middleware.RateLimitConfig) gin.HandlerFunc {
		if !cfg.Security.RateLimiting.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		if rdb != nil {
			return middleware.RateLimitMiddleware(middleware.NewRedisRateLimiter(rdb, "launchpal:ratelimit:"+prefix, limit))
		}
		rl := middleware.NewRateLimiter(limit)
		bg.rateLimiters = append(bg.rateLimiters, rl)
		return middleware.RateLimitMiddleware(rl)
	}
	apiLimiter := newLimiter("api", apiLimit)
	authLimiter := newLimiter("auth", middleware.AuthRateLimitConfig())
	uploadLimiter := newLimiter("upload", middleware.UploadRateLimitConfig())

	// Handlers
	accountHandlers := account.NewHandlers(accountSvc, meter, sso)
	platformHandlers := platforms.NewHandlers(credSvc, trendingSvc)
	productHandlers := products.NewHandlers(productSvc)
	launchHandlers := launches.NewHandlers(launchSvc, tracker)
	billingHandlers := billing.NewHandlers(billingSvc)
	oauthHandlers := oauthapi.NewHandlers(authServer)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.Security.CORS.AllowedOrigins, cfg.Security.CORS.AllowedMethods))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db, library, rdb))
	router.GET("/version", versionHandler())
	router.GET("/media/*path", mediaHandler(library))
	router.GET("/.well-known/oauth-authorization-server", oauthHandlers.Metadata)

	authGroup := router.Group("/auth", authLimiter)
	{
		authGroup.POST("/register", accountHandlers.Register)
		authGroup.POST("/login", accountHandlers.Login)
		authGroup.GET("/oidc/login", accountHandlers.OIDCLogin)
		authGroup.GET("/oidc/callback", accountHandlers.OIDCCallback)
	}

	oauthGroup := router.Group("/oauth", authLimiter)
	{
		consent := middleware.SecurityHeadersMiddleware(middleware.ConsentPageSecurityHeadersConfig())
		oauthGroup.GET("/authorize", consent, oauthHandlers.Authorize)
		oauthGroup.POST("/authorize", consent, oauthHandlers.Approve)
		oauthGroup.POST("/token", oauthHandlers.Token)
	}

	router.POST("/webhooks/billing", authLimiter, billingHandlers.Webhook)

	apiGroup := router.Group("/api",
		apiLimiter,
		middleware.AuthMiddleware(userRepo, apiKeyRepo),
		middleware.RequireMethodScope(),
		auditMiddleware,
	)
	{
		apiGroup.GET("/me", accountHandlers.Me)
		apiGroup.GET("/me/audit", account.AuditLog(auditSvc))
		apiGroup.POST("/me/api-key", accountHandlers.RegenerateAPIKey)
		apiGroup.GET("/usage", accountHandlers.Usage)

		apiGroup.GET("/platforms", platformHandlers.List)
		apiGroup.POST("/platforms/:platform/connect", platformHandlers.Connect)
		apiGroup.POST("/platforms/:platform/disconnect", platformHandlers.Disconnect)
		apiGroup.GET("/platforms/:platform/timing", platformHandlers.Timing)
		apiGroup.GET("/trending", platformHandlers.Trending)
		apiGroup.GET("/hunters", platformHandlers.Hunters)

		apiGroup.POST("/products", productHandlers.Create)
		apiGroup.GET("/products", productHandlers.List)
		apiGroup.GET("/products/:id", productHandlers.Get)
		apiGroup.PUT("/products/:id", productHandlers.Update)
		apiGroup.DELETE("/products/:id", productHandlers.Delete)
		apiGroup.POST("/products/:id/media", uploadLimiter, productHandlers.UploadMedia)

		apiGroup.POST("/launches", launchHandlers.Create)
		apiGroup.GET("/launches", launchHandlers.List)
		apiGroup.GET("/launches/:id", launchHandlers.Get)
		apiGroup.POST("/launches/:id/status", launchHandlers.UpdateStatus)
		apiGroup.POST("/launches/:id/schedule", launchHandlers.Schedule)
		apiGroup.GET("/launches/:id/metrics", launchHandlers.Metrics)
		apiGroup.GET("/launches/:id/analytics", launchHandlers.Analytics)
		apiGroup.GET("/launches/:id/analytics/export", launchHandlers.Export)
		apiGroup.GET("/launches/:id/comments", launchHandlers.Comments)

		apiGroup.GET("/billing/subscription", billingHandlers.Subscription)
		apiGroup.POST("/billing/checkout", billingHandlers.Checkout)
		apiGroup.POST("/billing/cancel", billingHandlers.Cancel)

		apiGroup.POST("/oauth/clients", oauthHandlers.RegisterClient)
		apiGroup.GET("/oauth/clients", oauthHandlers.ListClients)
	}

	return router, bg, nil
}

// healthCheckHandler is the liveness probe; only the database is checked.
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Pinger is anything readiness can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readinessHandler also probes media storage and, when configured, Redis, so
// that a readiness gate fails when uploads or rate limiting would error.
func readinessHandler(db *sql.DB, storage Pinger, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		checks := gin.H{}
		notReady := func(name, msg string) {
			checks[name] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  msg,
			})
		}

		if err := db.PingContext(ctx); err != nil {
			notReady("database", "database not ready")
			return
		}
		checks["database"] = "healthy"

		if err := storage.Ping(ctx); err != nil {
			notReady("storage", "media storage not ready")
			return
		}
		checks["storage"] = "healthy"

		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				notReady("redis", "redis not ready")
				return
			}
			checks["redis"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// MediaResolver maps a public media path to a redirect or a stream.
type MediaResolver interface {
	Resolve(ctx context.Context, objectPath string) (string, io.ReadCloser, error)
}

// mediaHandler serves product images. Backends that sign URLs get a
// redirect; the local backend is streamed.
func mediaHandler(lib MediaResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := c.Param("path")
		u, rc, err := lib.Resolve(c.Request.Context(), p)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		if rc == nil {
			c.Redirect(http.StatusFound, u)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}
