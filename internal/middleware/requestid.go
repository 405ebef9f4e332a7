package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey holds the id in the gin context for loggers and the audit trail.
	RequestIDKey = "request_id"

	maxRequestIDLen = 128
)

// RequestIDMiddleware tags every request with an id. An id sent by a proxy or
// the MCP client is kept unless it is longer than maxRequestIDLen.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if len(id) > maxRequestIDLen {
			id = ""
		}
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
