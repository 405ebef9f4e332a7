// Package config loads and validates the LaunchPal server configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the LAUNCHPAL_ prefix (e.g.
// LAUNCHPAL_DATABASE_HOST overrides database.host in the YAML).
//
// ENCRYPTION_KEY has no prefix. It is usually injected by secret tooling that
// does not know the application prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix applied to every bound environment variable.
const EnvPrefix = "LAUNCHPAL"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Platforms PlatformsConfig `mapstructure:"platforms"`
	Media     MediaConfig     `mapstructure:"media"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// EncryptionKey is read from ENCRYPTION_KEY and seals platform credential blobs.
	EncryptionKey string `mapstructure:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used as the OAuth issuer and in redirects.
// Falls back to base_url when public_url is unset.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return strings.TrimRight(s.PublicURL, "/")
	}
	return strings.TrimRight(s.BaseURL, "/")
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// RedisConfig holds the optional Redis connection used for distributed
// rate limiting and the analytics history store.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTTTL  time.Duration `mapstructure:"jwt_ttl"`
	APIKeys APIKeyConfig  `mapstructure:"api_keys"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	OIDC    OIDCConfig    `mapstructure:"oidc"`
}

// APIKeyConfig holds API key authentication configuration
type APIKeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// OAuthConfig controls the authorization server issuing tokens to third-party
// API and MCP clients.
type OAuthConfig struct {
	CodeTTL         time.Duration `mapstructure:"code_ttl"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// OIDCConfig holds the optional OpenID Connect provider used for dashboard sign-in
type OIDCConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// PlatformsConfig holds settings shared by every launch platform adapter
type PlatformsConfig struct {
	// RequestTimeout bounds every outbound call to a platform API.
	RequestTimeout time.Duration       `mapstructure:"request_timeout"`
	ProductHunt    ProductHuntEndpoint `mapstructure:"producthunt"`
}

// ProductHuntEndpoint overrides the Product Hunt API endpoints (tests, proxies).
type ProductHuntEndpoint struct {
	APIURL   string `mapstructure:"api_url"`
	TokenURL string `mapstructure:"token_url"`
}

// MediaConfig holds product media storage configuration
type MediaConfig struct {
	Backend        string             `mapstructure:"backend"`
	MaxFileSize    int64              `mapstructure:"max_file_size"`
	AllowedFormats []string           `mapstructure:"allowed_formats"`
	URLTTL         time.Duration      `mapstructure:"url_ttl"`
	Local          LocalStorageConfig `mapstructure:"local"`
	S3             S3StorageConfig    `mapstructure:"s3"`
	Azure          AzureStorageConfig `mapstructure:"azure"`
	GCS            GCSStorageConfig   `mapstructure:"gcs"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is optional, for MinIO and other S3-compatible services
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`

	// AuthMethod is one of "default", "static" or "assume_role"
	AuthMethod      string `mapstructure:"auth_method"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	RoleARN         string `mapstructure:"role_arn"`
	ExternalID      string `mapstructure:"external_id"`
}

// AzureStorageConfig holds Azure Blob Storage configuration
type AzureStorageConfig struct {
	AccountName   string `mapstructure:"account_name"`
	AccountKey    string `mapstructure:"account_key"`
	ContainerName string `mapstructure:"container_name"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
}

// BillingConfig holds payment provider integration settings
type BillingConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
	// CheckoutURL is a template; {plan} and {interval} are substituted.
	CheckoutURL string `mapstructure:"checkout_url"`
}

// JobsConfig holds background job scheduling
type JobsConfig struct {
	LaunchExecutor LaunchExecutorConfig `mapstructure:"launch_executor"`
	MetricsPoller  MetricsPollerConfig  `mapstructure:"metrics_poller"`
}

// LaunchExecutorConfig controls the job that activates due launches
type LaunchExecutorConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	CompletionWindow time.Duration `mapstructure:"completion_window"`
}

// MetricsPollerConfig controls periodic metric collection for active launches
type MetricsPollerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// AnalyticsConfig selects the launch metrics history store
type AnalyticsConfig struct {
	Store         string `mapstructure:"store"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// AuditConfig controls the account audit trail.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LogFailedRequests also records mutating requests that ended in 4xx/5xx
	LogFailedRequests bool                 `mapstructure:"log_failed_requests"`
	RetentionDays     int                  `mapstructure:"retention_days"`
	Shippers          []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig configures one external destination. Type is "webhook"
// or "file".
type AuditShipperConfig struct {
	Enabled bool               `mapstructure:"enabled"`
	Type    string             `mapstructure:"type"`
	Webhook AuditWebhookConfig `mapstructure:"webhook"`
	File    AuditFileConfig    `mapstructure:"file"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Secret        string            `mapstructure:"secret"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// envKeys lists every key that may be overridden from the environment.
// AutomaticEnv does not reach nested structs during Unmarshal, so each key is bound explicitly.
var envKeys = []string{
	"server.host",
	"server.port",
	"server.base_url",
	"server.public_url",
	"server.read_timeout",
	"server.write_timeout",

	"database.host",
	"database.port",
	"database.name",
	"database.user",
	"database.password",
	"database.ssl_mode",
	"database.max_connections",
	"database.min_idle_connections",

	"redis.enabled",
	"redis.addr",
	"redis.password",
	"redis.db",

	"auth.jwt_ttl",
	"auth.api_keys.enabled",
	"auth.api_keys.prefix",
	"auth.oauth.code_ttl",
	"auth.oauth.access_token_ttl",
	"auth.oauth.refresh_token_ttl",
	"auth.oidc.enabled",
	"auth.oidc.issuer_url",
	"auth.oidc.client_id",
	"auth.oidc.client_secret",
	"auth.oidc.redirect_url",
	"auth.oidc.scopes",

	"platforms.request_timeout",
	"platforms.producthunt.api_url",
	"platforms.producthunt.token_url",

	"media.backend",
	"media.max_file_size",
	"media.allowed_formats",
	"media.url_ttl",
	"media.local.base_path",
	"media.s3.endpoint",
	"media.s3.region",
	"media.s3.bucket",
	"media.s3.auth_method",
	"media.s3.access_key_id",
	"media.s3.secret_access_key",
	"media.s3.role_arn",
	"media.s3.external_id",
	"media.azure.account_name",
	"media.azure.account_key",
	"media.azure.container_name",
	"media.gcs.bucket",
	"media.gcs.credentials_file",
	"media.gcs.endpoint",

	"billing.webhook_secret",
	"billing.checkout_url",

	"jobs.launch_executor.enabled",
	"jobs.launch_executor.interval",
	"jobs.launch_executor.completion_window",
	"jobs.metrics_poller.enabled",
	"jobs.metrics_poller.interval",

	"analytics.store",
	"analytics.retention_days",

	"audit.enabled",
	"audit.log_failed_requests",
	"audit.retention_days",

	"security.cors.allowed_origins",
	"security.cors.allowed_methods",
	"security.rate_limiting.enabled",
	"security.rate_limiting.requests_per_minute",
	"security.rate_limiting.burst",
	"security.tls.enabled",
	"security.tls.cert_file",
	"security.tls.key_file",

	"logging.level",
	"logging.format",

	"telemetry.service_name",
	"telemetry.metrics.enabled",
	"telemetry.metrics.prometheus_port",
}

func bindEnvVars(v *viper.Viper) error {
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// newViper builds a Viper instance with defaults, the config file and env bindings applied.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/launchpal")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Auth.OIDC.ClientSecret = expandEnv(cfg.Auth.OIDC.ClientSecret)
	cfg.Media.S3.AccessKeyID = expandEnv(cfg.Media.S3.AccessKeyID)
	cfg.Media.S3.SecretAccessKey = expandEnv(cfg.Media.S3.SecretAccessKey)
	cfg.Media.Azure.AccountKey = expandEnv(cfg.Media.Azure.AccountKey)
	cfg.Billing.WebhookSecret = expandEnv(cfg.Billing.WebhookSecret)
	cfg.EncryptionKey = os.Getenv("ENCRYPTION_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "launchpal")
	v.SetDefault("database.user", "launchpal")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.jwt_ttl", "24h")
	v.SetDefault("auth.api_keys.enabled", true)
	v.SetDefault("auth.api_keys.prefix", "lp_")
	v.SetDefault("auth.oauth.code_ttl", "10m")
	v.SetDefault("auth.oauth.access_token_ttl", "1h")
	v.SetDefault("auth.oauth.refresh_token_ttl", "720h")
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})

	v.SetDefault("platforms.request_timeout", "15s")
	v.SetDefault("platforms.producthunt.api_url", "https://api.producthunt.com/v2/api/graphql")
	v.SetDefault("platforms.producthunt.token_url", "https://api.producthunt.com/v2/oauth/token")

	v.SetDefault("media.backend", "local")
	v.SetDefault("media.max_file_size", 10*1024*1024)
	v.SetDefault("media.allowed_formats", []string{"jpg", "jpeg", "png", "gif", "webp"})
	v.SetDefault("media.url_ttl", "1h")
	v.SetDefault("media.local.base_path", "./uploads")
	v.SetDefault("media.s3.auth_method", "default")

	v.SetDefault("billing.checkout_url", "https://checkout.stripe.com/mock?plan={plan}&interval={interval}")

	v.SetDefault("jobs.launch_executor.enabled", true)
	v.SetDefault("jobs.launch_executor.interval", "1m")
	v.SetDefault("jobs.launch_executor.completion_window", "24h")
	v.SetDefault("jobs.metrics_poller.enabled", true)
	v.SetDefault("jobs.metrics_poller.interval", "30m")

	v.SetDefault("analytics.store", "memory")
	v.SetDefault("analytics.retention_days", 30)

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_failed_requests", false)
	v.SetDefault("audit.retention_days", 365)

	v.SetDefault("security.cors.allowed_origins", []string{"http://localhost:8080", "https://launch.getfoundry.app"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 60)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.tls.enabled", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("telemetry.service_name", "launchpal")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}

	if c.Auth.OAuth.CodeTTL <= 0 {
		return fmt.Errorf("auth.oauth.code_ttl must be positive")
	}
	if c.Auth.OAuth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.oauth.access_token_ttl must be positive")
	}

	if c.Auth.OIDC.Enabled {
		if c.Auth.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.oidc.issuer_url is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id is required when OIDC is enabled")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret is required when OIDC is enabled")
		}
	}

	if c.Platforms.RequestTimeout <= 0 {
		return fmt.Errorf("platforms.request_timeout must be positive")
	}

	switch c.Media.Backend {
	case "local":
		if c.Media.Local.BasePath == "" {
			return fmt.Errorf("media.local.base_path is required when using local backend")
		}
	case "s3":
		if c.Media.S3.Bucket == "" {
			return fmt.Errorf("media.s3.bucket is required when using S3 backend")
		}
		if c.Media.S3.Region == "" {
			return fmt.Errorf("media.s3.region is required when using S3 backend")
		}
	case "azure":
		if c.Media.Azure.AccountName == "" || c.Media.Azure.AccountKey == "" || c.Media.Azure.ContainerName == "" {
			return fmt.Errorf("media.azure.account_name, account_key and container_name are required when using Azure backend")
		}
	case "gcs":
		if c.Media.GCS.Bucket == "" {
			return fmt.Errorf("media.gcs.bucket is required when using GCS backend")
		}
	default:
		return fmt.Errorf("invalid media backend: %s (must be local, s3, azure, or gcs)", c.Media.Backend)
	}

	switch c.Analytics.Store {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("analytics.store=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("invalid analytics store: %s (must be memory or redis)", c.Analytics.Store)
	}

	for i, sh := range c.Audit.Shippers {
		if !sh.Enabled {
			continue
		}
		switch sh.Type {
		case "webhook":
			if sh.Webhook.URL == "" {
				return fmt.Errorf("audit.shippers[%d].webhook.url is required", i)
			}
		case "file":
			if sh.File.Path == "" {
				return fmt.Errorf("audit.shippers[%d].file.path is required", i)
			}
		default:
			return fmt.Errorf("invalid audit shipper type: %s (must be webhook or file)", sh.Type)
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
