package account

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/services"
)

// AuditTrail lists an account's audited actions.
type AuditTrail interface {
	List(ctx context.Context, userID, action string, from, to time.Time, limit, offset int) (*services.AuditPage, error)
}

var _ AuditTrail = (*services.AuditService)(nil)

// AuditLog returns the caller's audit trail, newest first.
// GET /api/me/audit?action=...&startDate=...&endDate=...&limit=...&offset=...
func AuditLog(trail AuditTrail) gin.HandlerFunc {
	return func(c *gin.Context) {
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
		limit, err := queryInt(c, "limit", 50)
		if err != nil {
			apierr.BadRequest(c, "Invalid limit")
			return
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil {
			apierr.BadRequest(c, "Invalid offset")
			return
		}

		page, err := trail.List(c.Request.Context(), middleware.UserID(c), c.Query("action"), from, to, limit, offset)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
