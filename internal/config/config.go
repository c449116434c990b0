// Package config provides centralized configuration management for the registry service.
// Settings come from environment variables with defaults and are validated on startup so
// a misconfigured deployment fails fast.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RequestTimeout bounds every request through the chi Timeout middleware.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"5m"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// URL selects the store. postgres:// and postgresql:// open PostgreSQL,
	// anything else is treated as a SQLite location (":memory:" included).
	// DB_URL is accepted as an alias.
	URL string `env:"DATABASE_URL,required"`

	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

// ImportConfig holds bulk import settings.
type ImportConfig struct {
	// MaxFileSize caps uploaded files and JSON bodies (default: 32MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"33554432"`

	// MaxConcurrent is the number of imports processed at once.
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" envDefault:"4"`

	// MaxWaitTime is how long an import waits for a free slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" envDefault:"30s"`

	// Timeout bounds a single import call.
	Timeout time.Duration `env:"IMPORT_TIMEOUT" envDefault:"5m"`

	// CheckEvery is how many rows are processed between context checks.
	CheckEvery int `env:"IMPORT_CHECK_EVERY" envDefault:"200"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`

	// ImportLimit is requests per minute for the import endpoints.
	ImportLimit int `env:"RATE_LIMIT_IMPORT" envDefault:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" envDefault:"true"`

	// RequireAPIKey turns on X-API-Key checks for /api routes.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" envDefault:"false"`
	APIKeys       []string `env:"API_KEYS" envSeparator:","`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// IsPostgres reports whether the URL points at PostgreSQL.
func (c *DatabaseConfig) IsPostgres() bool {
	u := strings.ToLower(c.URL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}
