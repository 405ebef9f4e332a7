package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MCPConfig configures the stdio tool server. Variable names are unprefixed
// because MCP hosts pass them straight through from their own config files.
type MCPConfig struct {
	APIURL         string        `mapstructure:"api_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Debug          bool          `mapstructure:"debug"`

	ProductHunt ProductHuntLoginConfig `mapstructure:"producthunt"`
}

// ProductHuntLoginConfig drives the local browser-based Product Hunt login.
type ProductHuntLoginConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	AuthURL      string        `mapstructure:"auth_url"`
	TokenURL     string        `mapstructure:"token_url"`
	Port         int           `mapstructure:"port"`
	RedirectURI  string        `mapstructure:"redirect_uri"`
	TokenPath    string        `mapstructure:"token_path"`
	LoginTimeout time.Duration `mapstructure:"login_timeout"`
}

var mcpEnv = map[string]string{
	"api_url":                   "LAUNCHPAL_API_URL",
	"api_key":                   "LAUNCHPAL_API_KEY",
	"request_timeout":           "LAUNCHPAL_REQUEST_TIMEOUT",
	"debug":                     "DEBUG",
	"producthunt.client_id":     "PRODUCTHUNT_CLIENT_ID",
	"producthunt.client_secret": "PRODUCTHUNT_CLIENT_SECRET",
	"producthunt.port":          "AUTH_PORT",
	"producthunt.redirect_uri":  "AUTH_REDIRECT_URI",
	"producthunt.token_path":    "AUTH_TOKEN_PATH",
	"producthunt.login_timeout": "AUTH_LOGIN_TIMEOUT",
}

// LoadMCP reads the MCP server configuration from the environment.
func LoadMCP() (*MCPConfig, error) {
	v := viper.New()
	v.SetDefault("api_url", "https://launch.getfoundry.app")
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("debug", false)
	v.SetDefault("producthunt.auth_url", "https://www.producthunt.com/v2/oauth/authorize")
	v.SetDefault("producthunt.token_url", "https://api.producthunt.com/v2/oauth/token")
	v.SetDefault("producthunt.port", 8090)
	v.SetDefault("producthunt.redirect_uri", "")
	v.SetDefault("producthunt.token_path", ".auth/tokens.json")
	v.SetDefault("producthunt.login_timeout", "2m")

	for key, env := range mcpEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env var %q: %w", env, err)
		}
	}

	var cfg MCPConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.ProductHunt.RedirectURI == "" {
		cfg.ProductHunt.RedirectURI = fmt.Sprintf("http://localhost:%d/callback", cfg.ProductHunt.Port)
	}
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("LAUNCHPAL_API_URL is required")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("LAUNCHPAL_REQUEST_TIMEOUT must be positive")
	}
	return &cfg, nil
}
