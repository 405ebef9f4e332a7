// Package launches implements the launch endpoints: scheduling, status
// changes, live metrics and analytics.
package launches

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/analytics"
	"github.com/launchpal/launchpal/internal/api/apierr"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/services"
)

const defaultPredictionHours = 24

// Launches is the launch service the handlers call.
type Launches interface {
	Schedule(ctx context.Context, userID string, in services.ScheduleLaunchInput) (*models.Launch, error)
	CreateDraft(ctx context.Context, userID string, in services.ScheduleLaunchInput) (*models.Launch, error)
	ScheduleDraft(ctx context.Context, userID, id string, when time.Time) (*models.Launch, error)
	Get(ctx context.Context, userID, id string) (*models.Launch, error)
	List(ctx context.Context, userID, status string) ([]*models.Launch, error)
	UpdateStatus(ctx context.Context, userID, id, status string) (*models.Launch, error)
	GetMetrics(ctx context.Context, userID, id string) (*platform.Metrics, error)
	MetricsHistory(ctx context.Context, userID, id string) ([]*models.LaunchMetric, error)
	Comments(ctx context.Context, userID, id string, limit int) ([]platform.Comment, error)
	Market(ctx context.Context, l *models.Launch) (*services.MarketSnapshot, error)
}

// Analytics reads a launch's metrics series.
type Analytics interface {
	Series(ctx context.Context, l *models.Launch) ([]analytics.Point, error)
	Report(ctx context.Context, l *models.Launch, hoursAhead float64) (*analytics.Report, error)
}

var (
	_ Launches  = (*services.LaunchService)(nil)
	_ Analytics = (*analytics.Tracker)(nil)
)

// Handlers serves the launch endpoints.
type Handlers struct {
	launches  Launches
	analytics Analytics
}

// NewHandlers creates a new Handlers
func NewHandlers(launches Launches, tracker Analytics) *Handlers {
	return &Handlers{launches: launches, analytics: tracker}
}

// CreateLaunchRequest is the body of POST /api/launches. Draft launches are
// stored without contacting the platform.
type CreateLaunchRequest struct {
	services.ScheduleLaunchInput
	Draft bool `json:"draft"`
}

// StatusRequest is the body of POST /api/launches/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ScheduleRequest is the body of POST /api/launches/:id/schedule.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" binding:"required"`
}

// Create schedules a launch (or stores a draft).
// POST /api/launches
func (h *Handlers) Create(c *gin.Context) {
	var req CreateLaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	create := h.launches.Schedule
	if req.Draft {
		create = h.launches.CreateDraft
	}
	l, err := create(c.Request.Context(), middleware.UserID(c), req.ScheduleLaunchInput)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, l)
}

// List returns the caller's launches, optionally filtered by status.
// GET /api/launches?status=scheduled
func (h *Handlers) List(c *gin.Context) {
	list, err := h.launches.List(c.Request.Context(), middleware.UserID(c), c.Query("status"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if list == nil {
		list = []*models.Launch{}
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one launch.
// GET /api/launches/:id
func (h *Handlers) Get(c *gin.Context) {
	l, err := h.launches.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// UpdateStatus moves a launch along its lifecycle.
// POST /api/launches/:id/status
func (h *Handlers) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "status is required")
		return
	}
	l, err := h.launches.UpdateStatus(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Status)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Schedule schedules a draft launch on its platform.
// POST /api/launches/:id/schedule
func (h *Handlers) Schedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.BadRequest(c, "scheduledAt is required")
		return
	}
	l, err := h.launches.ScheduleDraft(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.ScheduledAt)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

// Metrics fetches live metrics from the platform. With history=true it
// returns the stored snapshots instead and is not metered.
// GET /api/launches/:id/metrics
func (h *Handlers) Metrics(c *gin.Context) {
	ctx, userID, id := c.Request.Context(), middleware.UserID(c), c.Param("id")
	if c.Query("history") == "true" {
		history, err := h.launches.MetricsHistory(ctx, userID, id)
		if err != nil {
			apierr.Respond(c, err)
			return
		}
		if history == nil {
			history = []*models.LaunchMetric{}
		}
		c.JSON(http.StatusOK, history)
		return
	}

	m, err := h.launches.GetMetrics(ctx, userID, id)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// Analytics returns the timeline, peak hour, prediction, leaderboard rank
// and historical comparison for a launch. The leaderboard is fetched best
// effort: when the platform cannot be reached the rank stays unranked.
// GET /api/launches/:id/analytics?hoursAhead=24&includeCompetitors=true
func (h *Handlers) Analytics(c *gin.Context) {
	hours := float64(defaultPredictionHours)
	if s := c.Query("hoursAhead"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			apierr.BadRequest(c, "hoursAhead must be a positive number")
			return
		}
		hours = v
	}
	withCompetitors := false
	if s := c.Query("includeCompetitors"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			apierr.BadRequest(c, "includeCompetitors must be true or false")
			return
		}
		withCompetitors = v
	}
	ctx := c.Request.Context()
	l, err := h.launches.Get(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	report, err := h.analytics.Report(ctx, l, hours)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	market, err := h.launches.Market(ctx, l)
	if err != nil {
		slog.Warn("leaderboard unavailable for launch report", "launch_id", l.ID, "error", err)
	} else {
		report.Place(market.Trending, market.PostID, withCompetitors)
	}
	c.JSON(http.StatusOK, report)
}

// Comments lists the comments on a launch's product.
// GET /api/launches/:id/comments?limit=50
func (h *Handlers) Comments(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			apierr.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = v
	}
	comments, err := h.launches.Comments(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	if comments == nil {
		comments = []platform.Comment{}
	}
	c.JSON(http.StatusOK, comments)
}

// Export downloads the metrics series as JSON or CSV.
// GET /api/launches/:id/analytics/export?format=csv
func (h *Handlers) Export(c *gin.Context) {
	format := c.DefaultQuery("format", analytics.FormatJSON)
	if format != analytics.FormatJSON && format != analytics.FormatCSV {
		apierr.BadRequest(c, "format must be json or csv")
		return
	}
	l, err := h.launches.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	series, err := h.analytics.Series(c.Request.Context(), l)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	data, contentType, err := analytics.Export(series, format)
	if err != nil {
		apierr.Respond(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="launch-%s-metrics.%s"`, l.ID, format))
	c.Data(http.StatusOK, contentType, data)
}
