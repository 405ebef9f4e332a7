package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/db/repositories"
	"github.com/launchpal/launchpal/internal/middleware"
	"github.com/launchpal/launchpal/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	secret      = "whsec_test"
	checkoutURL = "https://pay.example.com/checkout?plan={plan}&interval={interval}"
)

// newService builds a real BillingService over a sqlmock-backed user
// repository so the webhook path runs end to end.
func newService(t *testing.T) (*services.BillingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	users := repositories.NewUserRepository(db)
	return services.NewBillingService(users, checkoutURL, secret), mock
}

func newRouter(b Billing) *gin.Engine {
	h := NewHandlers(b)
	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) { c.Set(middleware.UserIDKey, "user-1") })
	api.GET("/billing/subscription", h.Subscription)
	api.POST("/billing/checkout", h.Checkout)
	api.POST("/billing/cancel", h.Cancel)
	r.POST("/webhooks/billing", h.Webhook)
	return r
}

func do(r http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCheckout(t *testing.T) {
	svc, _ := newService(t)
	r := newRouter(svc)

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"starter monthly", `{"plan":"starter"}`, http.StatusOK, "plan=starter&interval=month"},
		{"pro yearly", `{"plan":"pro","interval":"year"}`, http.StatusOK, "plan=pro&interval=year"},
		{"free is not for sale", `{"plan":"free"}`, http.StatusBadRequest, "unknown plan"},
		{"bad interval", `{"plan":"pro","interval":"week"}`, http.StatusBadRequest, "interval must be month or year"},
		{"missing plan", `{}`, http.StatusBadRequest, "plan is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/billing/checkout", tt.body, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body)
			}
			var out struct {
				URL   string `json:"url"`
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := out.URL + out.Error; !strings.Contains(got, tt.want) {
				t.Errorf("url/error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	svc, mock := newService(t)
	r := newRouter(svc)

	body := `{"type":"subscription.created","data":{"customer_email":"a@example.com","product_id":"prod_pro"}}`
	w := do(r, http.MethodPost, "/webhooks/billing", body, map[string]string{services.SignatureHeader: "deadbeef"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWebhook_IgnoresUnknownEvents(t *testing.T) {
	svc, _ := newService(t)
	r := newRouter(svc)

	body := `{"type":"invoice.paid","data":{}}`
	w := do(r, http.MethodPost, "/webhooks/billing", body, map[string]string{services.SignatureHeader: svc.Sign([]byte(body))})
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", w.Code, w.Body)
	}
}

func TestWebhook_UnknownCustomer(t *testing.T) {
	svc, mock := newService(t)
	r := newRouter(svc)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE lower\(email\)`).
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	body := `{"type":"subscription.cancelled","data":{"customer_email":"ghost@example.com"}}`
	w := do(r, http.MethodPost, "/webhooks/billing", body, map[string]string{services.SignatureHeader: svc.Sign([]byte(body))})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (body %s)", w.Code, w.Body)
	}
}

// ---------------------------------------------------------------------------
// subscription endpoints against a fake
// ---------------------------------------------------------------------------

type fakeBilling struct {
	plan string
}

func (f *fakeBilling) Get(context.Context, string) (*services.Subscription, error) {
	return &services.Subscription{Plan: f.plan}, nil
}

func (f *fakeBilling) Checkout(string, string) (string, error) { return "", nil }

func (f *fakeBilling) Cancel(context.Context, string) (*services.Subscription, error) {
	f.plan = "free"
	return &services.Subscription{Plan: f.plan}, nil
}

func (f *fakeBilling) HandleWebhook(context.Context, []byte, string) error { return nil }

func TestSubscriptionAndCancel(t *testing.T) {
	f := &fakeBilling{plan: "pro"}
	r := newRouter(f)

	w := do(r, http.MethodGet, "/api/billing/subscription", "", nil)
	if !strings.Contains(w.Body.String(), `"plan":"pro"`) {
		t.Errorf("body = %s", w.Body)
	}
	w = do(r, http.MethodPost, "/api/billing/cancel", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"plan":"free"`) {
		t.Errorf("status = %d, body = %s", w.Code, w.Body)
	}
}
