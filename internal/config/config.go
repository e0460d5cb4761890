package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CREWPORTAL_"

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendValkey = "valkey"
)

// Config is the application configuration: embedded defaults, then the
// TOML file, then environment overrides.
type Config struct {
	Env      string         `toml:"env" env:"ENV"`
	Server   ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	API      APIConfig      `toml:"api" envPrefix:"API_"`
	Storage  StorageConfig  `toml:"storage" envPrefix:"STORAGE_"`
	Log      LogConfig      `toml:"log" envPrefix:"LOG_"`
	Security SecurityConfig `toml:"security" envPrefix:"SECURITY_"`
	Email    EmailConfig    `toml:"email" envPrefix:"EMAIL_"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr               string        `toml:"addr" env:"ADDR"`
	SecureCookies      bool          `toml:"secure_cookies" env:"SECURE_COOKIES"`
	TrustedOrigins     []string      `toml:"trusted_origins" env:"TRUSTED_ORIGINS"`
	RateLimitPerSecond float64       `toml:"rate_limit_per_second" env:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int           `toml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	SlowRequest        time.Duration `toml:"slow_request" env:"SLOW_REQUEST"`
}

// APIConfig contains the crew API client settings.
type APIConfig struct {
	BaseURL           string        `toml:"base_url" env:"BASE_URL"`
	Timeout           time.Duration `toml:"timeout" env:"TIMEOUT"`
	RequestsPerSecond float64       `toml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int           `toml:"burst" env:"BURST"`
}

// StorageConfig selects and configures the device-state backend.
type StorageConfig struct {
	Backend    string        `toml:"backend" env:"BACKEND"`
	SQLitePath string        `toml:"sqlite_path" env:"SQLITE_PATH"`
	ValkeyURI  string        `toml:"valkey_uri" env:"VALKEY_URI"`
	SlowQuery  time.Duration `toml:"slow_query" env:"SLOW_QUERY"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"LEVEL"`
}

// SecurityConfig contains secrets.
type SecurityConfig struct {
	MasterSecret string `toml:"master_secret" env:"MASTER_SECRET"`
}

// EmailConfig contains feedback mail settings.
type EmailConfig struct {
	ResendKey  string `toml:"resend_key" env:"RESEND_KEY"`
	From       string `toml:"from" env:"FROM"`
	FeedbackTo string `toml:"feedback_to" env:"FEEDBACK_TO"`
}

// Configuration errors
var (
	ErrMissingAPIBaseURL = errors.New("api.base_url is required")
	ErrUnknownBackend    = errors.New("storage.backend must be sqlite or valkey")
	ErrMissingValkeyURI  = errors.New("storage.valkey_uri is required for the valkey backend")
	ErrMissingSecret     = errors.New("security.master_secret is required in production")
)

// IsProduction reports whether the portal runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Default returns the embedded example configuration.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, the TOML file
// at path (skipped when it does not exist), a .env file in the working
// directory and finally the environment.
// PRE: none
// POST: returns a validated Config or an error
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return ErrMissingAPIBaseURL
	}
	switch c.Storage.Backend {
	case BackendSQLite:
	case BackendValkey:
		if c.Storage.ValkeyURI == "" {
			return ErrMissingValkeyURI
		}
	default:
		return ErrUnknownBackend
	}
	if c.IsProduction() && c.Security.MasterSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

// CreateConfigFile writes the embedded example config to path.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
