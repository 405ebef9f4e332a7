package localauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/launchpal/launchpal/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestLogin(t *testing.T, tokenURL string) (*LoginServer, *Store) {
	t.Helper()
	store := newTestStore(t)
	cfg := config.ProductHuntLoginConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      "https://www.producthunt.com/v2/oauth/authorize",
		TokenURL:     tokenURL,
		Port:         0,
		RedirectURI:  "http://localhost:8090/callback",
	}
	s, err := NewLoginServer(cfg, store)
	if err != nil {
		t.Fatalf("NewLoginServer() error = %v", err)
	}
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s, store
}

func serve(s *LoginServer, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewLoginServer_RequiresCredentials(t *testing.T) {
	if _, err := NewLoginServer(config.ProductHuntLoginConfig{}, NewStore("x")); err == nil {
		t.Error("expected error without client credentials")
	}
}

// ---------------------------------------------------------------------------
// /auth
// ---------------------------------------------------------------------------

func TestLogin_AuthRedirect(t *testing.T) {
	s, _ := newTestLogin(t, "http://unused")
	w := serve(s, "/auth")
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	q := loc.Query()
	if q.Get("client_id") != "client" || q.Get("response_type") != "code" {
		t.Errorf("query = %v", q)
	}
	if q.Get("scope") != "public private write" {
		t.Errorf("scope = %q", q.Get("scope"))
	}
	if q.Get("state") != s.state || len(s.state) != 64 {
		t.Errorf("state = %q", q.Get("state"))
	}
}

// ---------------------------------------------------------------------------
// /callback
// ---------------------------------------------------------------------------

func TestLogin_Callback(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "the-code" || r.Form.Get("client_secret") != "secret" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ph-abc","token_type":"Bearer","scope":"public private write","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	s, store := newTestLogin(t, tokenSrv.URL)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"bad state", "?state=nope&code=the-code", http.StatusBadRequest, "Invalid state parameter"},
		{"missing code", "?state=" + s.state, http.StatusBadRequest, "No authorization code received"},
		{"exchange fails", "?state=" + s.state + "&code=wrong", http.StatusInternalServerError, "Authentication failed"},
		{"success", "?state=" + s.state + "&code=the-code", http.StatusOK, "Authentication Successful"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(s, "/callback"+tt.query)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.status, w.Body)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body = %s, want %q", w.Body, tt.body)
			}
		})
	}

	tok, err := store.Load()
	if err != nil || tok == nil {
		t.Fatalf("token not saved: %v", err)
	}
	if tok.AccessToken != "ph-abc" || tok.Scope != "public private write" || tok.CreatedAt != 1700000000000 {
		t.Errorf("token = %+v", tok)
	}
	if tok.ExpiresAt == nil {
		t.Error("expires_at not recorded")
	}
}

// ---------------------------------------------------------------------------
// /, /status, /logout
// ---------------------------------------------------------------------------

func TestLogin_StatusAndLogout(t *testing.T) {
	s, store := newTestLogin(t, "http://unused")

	if w := serve(s, "/"); !strings.Contains(w.Body.String(), "Login with Product Hunt") {
		t.Errorf("home page without login = %s", w.Body)
	}

	if err := store.Save(&Token{AccessToken: "tok", Scope: "public", CreatedAt: 1700000000000}); err != nil {
		t.Fatal(err)
	}
	if w := serve(s, "/"); !strings.Contains(w.Body.String(), "You are authenticated") {
		t.Errorf("home page with login = %s", w.Body)
	}

	w := serve(s, "/status")
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["authenticated"] != true || body["hasToken"] != true || body["tokenExpiresAt"] != nil {
		t.Errorf("status = %v", body)
	}

	w = serve(s, "/logout")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Errorf("logout: status = %d, location = %q", w.Code, w.Header().Get("Location"))
	}
	if tok, _ := store.Load(); tok != nil {
		t.Error("token survived logout")
	}
}

func TestLogin_StartShutdown(t *testing.T) {
	s, _ := newTestLogin(t, "http://unused")
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("second Start() error = %v", err)
	}

	resp, err := http.Get(s.URL() + "/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := s.Shutdown(t.Context()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
