package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the health service. Environment
// variables are parsed from the SUPAHEALTH_ prefix. The struct is built
// once at startup and treated as read-only afterwards; the signing
// secret is never logged.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Storage. DBDriver "auto" derives from BuildTarget.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"supahealth.db"`

	// Token signing. SecretKey is mandatory; tokens expire after
	// TokenTTLMinutes (24 hours by default).
	SecretKey       string `envconfig:"SECRET_KEY"`
	TokenTTLMinutes int    `envconfig:"TOKEN_TTL_MINUTES" default:"1440"`

	// Completion provider (assistant chat endpoint).
	OpenAIAPIKey       string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL      string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel        string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	ChatTimeoutSeconds int    `envconfig:"CHAT_TIMEOUT_SECONDS" default:"10"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver when it is
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for the postgres driver")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if c.TokenTTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive")
	}
	return nil
}

// TokenTTL returns the configured token lifetime as a duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// ChatTimeout returns the per-attempt timeout for the completion provider.
func (c *Config) ChatTimeout() time.Duration {
	return time.Duration(c.ChatTimeoutSeconds) * time.Second
}

// New creates a Config by parsing environment variables prefixed with
// SUPAHEALTH_, e.g. SUPAHEALTH_HTTP_PORT, SUPAHEALTH_SECRET_KEY.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SUPAHEALTH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Int("token_ttl_minutes", cfg.TokenTTLMinutes).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("openai_key_present", cfg.OpenAIAPIKey != "").
		Str("openai_model", cfg.OpenAIModel).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config suitable for tests: SQLite storage and
// a fixed (non-production) signing secret.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:        "local",
		Environment:        EnvTesting,
		HTTPPort:           8080,
		DBDriver:           "sqlite",
		SQLitePath:         "", // callers point this at a temp file
		SecretKey:          "test-secret-key",
		TokenTTLMinutes:    1440,
		OpenAIBaseURL:      "http://localhost:0",
		OpenAIModel:        "test-model",
		ChatTimeoutSeconds: 2,
	}
}

// IsTesting returns true if the environment is set to testing.
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production.
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }
