// audit.go records authenticated write operations to the audit trail.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/launchpal/launchpal/internal/audit"
)

// AuditRecorder accepts events without blocking.
type AuditRecorder interface {
	Record(e *audit.Event)
}

type auditRoute struct {
	action       string
	resourceType string
	idParam      string
}

// auditRoutes names the audited action for each "METHOD route". Writes on
// unlisted routes are recorded under their method and route.
var auditRoutes = map[string]auditRoute{
	"POST /api/me/api-key":                     {"api_key.regenerated", "api_key", ""},
	"POST /api/platforms/:platform/connect":    {"platform.connected", "platform", "platform"},
	"POST /api/platforms/:platform/disconnect": {"platform.disconnected", "platform", "platform"},
	"POST /api/products":                       {"product.created", "product", ""},
	"PUT /api/products/:id":                    {"product.updated", "product", "id"},
	"DELETE /api/products/:id":                 {"product.deleted", "product", "id"},
	"POST /api/products/:id/media":             {"product.media_uploaded", "product", "id"},
	"POST /api/launches":                       {"launch.created", "launch", ""},
	"POST /api/launches/:id/status":            {"launch.status_changed", "launch", "id"},
	"POST /api/launches/:id/schedule":          {"launch.rescheduled", "launch", "id"},
	"POST /api/billing/checkout":               {"billing.checkout_started", "subscription", ""},
	"POST /api/billing/cancel":                 {"billing.cancelled", "subscription", ""},
	"POST /api/oauth/clients":                  {"oauth_client.registered", "oauth_client", ""},
}

// AuditMiddleware records every authenticated non-GET request once the
// handler has run. Failed requests (4xx/5xx) are skipped unless logFailed.
func AuditMiddleware(recorder AuditRecorder, logFailed bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		userID := c.GetString(UserIDKey)
		if userID == "" {
			return
		}
		status := c.Writer.Status()
		if status >= 400 && !logFailed {
			return
		}

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		route, ok := auditRoutes[c.Request.Method+" "+path]
		if !ok {
			route = auditRoute{action: strings.ToLower(c.Request.Method) + " " + path}
		}

		e := &audit.Event{
			Timestamp:    time.Now().UTC(),
			Action:       route.action,
			UserID:       userID,
			ResourceType: route.resourceType,
			AuthMethod:   c.GetString(AuthMethodKey),
			StatusCode:   status,
			IPAddress:    c.ClientIP(),
			RequestID:    c.GetString(RequestIDKey),
			Metadata:     map[string]any{"method": c.Request.Method, "path": c.Request.URL.Path},
		}
		if route.idParam != "" {
			e.ResourceID = c.Param(route.idParam)
		}
		if id := c.GetString(ClientIDKey); id != "" {
			e.Metadata["oauth_client_id"] = id
		}
		recorder.Record(e)
	}
}
