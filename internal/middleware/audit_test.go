package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/launchpal/launchpal/internal/audit"
)

type captureRecorder struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *captureRecorder) Record(e *audit.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func newAuditRouter(rec AuditRecorder, logFailed bool, userID string) *gin.Engine {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(UserIDKey, userID)
			c.Set(AuthMethodKey, AuthMethodAPIKey)
		}
		c.Next()
	})
	r.Use(AuditMiddleware(rec, logFailed))
	api := r.Group("/api")
	api.POST("/products", func(c *gin.Context) { c.Status(http.StatusCreated) })
	api.GET("/products", func(c *gin.Context) { c.Status(http.StatusOK) })
	api.DELETE("/products/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	api.POST("/platforms/:platform/connect", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	api.PUT("/widgets/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAuditMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		path      string
		userID    string
		logFailed bool
		action    string
		resource  string
	}{
		{"create product", http.MethodPost, "/api/products", "u1", false, "product.created", ""},
		{"delete product carries id", http.MethodDelete, "/api/products/p9", "u1", false, "product.deleted", "p9"},
		{"read skipped", http.MethodGet, "/api/products", "u1", false, "", ""},
		{"anonymous skipped", http.MethodPost, "/api/products", "", false, "", ""},
		{"failure skipped", http.MethodPost, "/api/platforms/producthunt/connect", "u1", false, "", ""},
		{"failure recorded when enabled", http.MethodPost, "/api/platforms/producthunt/connect", "u1", true, "platform.connected", "producthunt"},
		{"unlisted route", http.MethodPut, "/api/widgets/w1", "u1", false, "put /api/widgets/:id", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &captureRecorder{}
			r := newAuditRouter(rec, tt.logFailed, tt.userID)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if tt.action == "" {
				if len(rec.events) != 0 {
					t.Fatalf("expected no event, got %+v", rec.events[0])
				}
				return
			}
			if len(rec.events) != 1 {
				t.Fatalf("events = %d, want 1", len(rec.events))
			}
			e := rec.events[0]
			if e.Action != tt.action || e.ResourceID != tt.resource {
				t.Errorf("event = %+v", e)
			}
			if e.UserID != "u1" || e.AuthMethod != AuthMethodAPIKey || e.RequestID == "" || e.StatusCode != w.Code {
				t.Errorf("context not captured: %+v", e)
			}
		})
	}
}
