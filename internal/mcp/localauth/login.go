package localauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/safego"
)

// Scopes requested from Product Hunt.
var Scopes = []string{"public", "private", "write"}

// LoginServer is the local web server that runs the Product Hunt
// authorization code flow and writes the resulting token to a Store.
type LoginServer struct {
	cfg    config.ProductHuntLoginConfig
	store  *Store
	oauth  *oauth2.Config
	state  string
	now    func() time.Time
	engine *gin.Engine

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
}

// NewLoginServer prepares a login server. Nothing listens until Start.
func NewLoginServer(cfg config.ProductHuntLoginConfig, store *Store) (*LoginServer, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("PRODUCTHUNT_CLIENT_ID and PRODUCTHUNT_CLIENT_SECRET are required for login")
	}
	state := make([]byte, 32)
	if _, err := rand.Read(state); err != nil {
		return nil, err
	}
	s := &LoginServer{
		cfg:   cfg,
		store: store,
		state: hex.EncodeToString(state),
		now:   time.Now,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	s.engine = s.routes()
	return s, nil
}

func (s *LoginServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/", s.home)
	r.GET("/auth", s.authorize)
	r.GET("/callback", s.callback)
	r.GET("/logout", s.logout)
	r.GET("/status", s.status)
	return r
}

// Handler exposes the routes for tests.
func (s *LoginServer) Handler() http.Handler { return s.engine }

// Start listens on localhost at the configured port. Calling Start on a
// running server is a no-op.
func (s *LoginServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("start login server: %w", err)
	}
	s.listener = ln
	s.srv = &http.Server{Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	srv := s.srv
	safego.Go("producthunt-login-server", func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("login server stopped", "error", err)
		}
	})
	slog.Info("login server listening", "url", s.URL())
	return nil
}

// URL returns the address of the login page.
func (s *LoginServer) URL() string {
	if s.listener != nil {
		return "http://" + s.listener.Addr().String()
	}
	return fmt.Sprintf("http://localhost:%d", s.cfg.Port)
}

// Shutdown stops the server.
func (s *LoginServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.listener = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *LoginServer) home(c *gin.Context) {
	render(c, http.StatusOK, homePage, gin.H{"Authenticated": s.store.Info().Authenticated})
}

func (s *LoginServer) authorize(c *gin.Context) {
	c.Redirect(http.StatusFound, s.oauth.AuthCodeURL(s.state))
}

func (s *LoginServer) callback(c *gin.Context) {
	if c.Query("state") != s.state {
		c.String(http.StatusBadRequest, "Invalid state parameter")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.String(http.StatusBadRequest, "No authorization code received")
		return
	}

	tok, err := s.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		slog.Error("token exchange failed", "error", err)
		c.String(http.StatusInternalServerError, "Authentication failed. Please try again.")
		return
	}
	if err := s.store.Save(s.toToken(tok)); err != nil {
		slog.Error("failed to save token", "error", err)
		c.String(http.StatusInternalServerError, "Authentication failed. Please try again.")
		return
	}
	slog.Info("product hunt login completed")
	render(c, http.StatusOK, successPage, nil)
}

func (s *LoginServer) toToken(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		CreatedAt:    s.now().UnixMilli(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UnixMilli()
		t.ExpiresAt = &exp
	}
	return t
}

func (s *LoginServer) logout(c *gin.Context) {
	if err := s.store.Clear(); err != nil {
		slog.Warn("failed to clear token", "error", err)
	}
	c.Redirect(http.StatusFound, "/")
}

func (s *LoginServer) status(c *gin.Context) {
	t, _ := s.store.Load()
	body := gin.H{
		"authenticated":  s.store.Info().Authenticated,
		"hasToken":       t != nil,
		"tokenCreatedAt": nil,
		"tokenExpiresAt": nil,
	}
	if t != nil {
		body["tokenCreatedAt"] = time.UnixMilli(t.CreatedAt).UTC().Format(time.RFC3339)
		if t.ExpiresAt != nil {
			body["tokenExpiresAt"] = time.UnixMilli(*t.ExpiresAt).UTC().Format(time.RFC3339)
		}
		body["scopes"] = t.Scope
	}
	c.JSON(http.StatusOK, body)
}

func render(c *gin.Context, status int, tmpl *template.Template, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(c.Writer, data); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}

// OpenBrowser opens url with the platform's default handler. It is a
// variable so tests can replace it.
var OpenBrowser = func(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

var homePage = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>LaunchPal - Product Hunt Authentication</title>
<style>
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;max-width:600px;margin:100px auto;padding:20px}
.status{padding:15px;border-radius:8px;margin-bottom:20px}
.ok{background:#d4edda;color:#155724}.no{background:#f8d7da;color:#721c24}
.button{display:inline-block;padding:12px 24px;background:#da552f;color:#fff;text-decoration:none;border-radius:6px;font-weight:600}
</style></head>
<body>
<h1>LaunchPal Authentication</h1>
<p>Connect your Product Hunt account to get started</p>
{{if .Authenticated}}
<div class="status ok">You are authenticated with Product Hunt</div>
<a class="button" href="/logout">Logout</a> <a class="button" href="/status">View Status</a>
{{else}}
<div class="status no">Not authenticated. Please login to continue.</div>
<a class="button" href="/auth">Login with Product Hunt</a>
{{end}}
</body>
</html>
`))

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Authentication Successful</title></head>
<body style="font-family:sans-serif;text-align:center;margin-top:100px">
<h1>Authentication Successful!</h1>
<p>You're now connected to Product Hunt.</p>
<p>You can close this window and return to your assistant.</p>
</body>
</html>
`))
