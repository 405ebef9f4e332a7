package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/telemetry"
)

// noRoute labels requests that matched no route so unknown paths cannot
// inflate label cardinality.
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds, labelled by the matched route template
// (e.g. /api/launches/:id) rather than the raw URL.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
