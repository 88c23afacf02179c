// Package config loads tablelink's settings from environment variables.
// Defaults are applied for unset values and everything is validated on
// startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/tablelink/internal/core"
)

// Config holds all application configuration.
type Config struct {
	Remote   RemoteConfig
	Server   ServerConfig
	Format   FormatConfig
	Audit    AuditConfig
	Import   ImportConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// RemoteConfig points at the Tables server.
type RemoteConfig struct {
	// URL is the server root, e.g. https://cloud.example.com (required)
	URL string `env:"TABLES_URL" envAlt:"NEXTCLOUD_URL" required:"true"`

	// User is the account name used for Basic auth (required)
	User string `env:"TABLES_USER" envAlt:"NEXTCLOUD_USER" required:"true"`

	// Password is an app password for User (required)
	Password string `env:"TABLES_PASSWORD" envAlt:"NEXTCLOUD_APP_PASSWORD" required:"true"`

	// Timeout bounds one HTTP exchange with the server (default: 30s)
	Timeout time.Duration `env:"TABLES_TIMEOUT" default:"30s"`

	// RateLimit caps outgoing requests per second; 0 disables it (default: 0)
	RateLimit float64 `env:"TABLES_RATE_LIMIT" default:"0"`

	// RateBurst is the burst allowed by RateLimit (default: 5)
	RateBurst int `env:"TABLES_RATE_BURST" default:"5"`

	// SlowThreshold logs calls slower than this at warn level (default: 2s)
	SlowThreshold time.Duration `env:"TABLES_SLOW_THRESHOLD" default:"2s"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// RateLimit is the number of requests per minute allowed per client IP; 0 disables it (default: 600)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"600"`
}

// FormatConfig holds the default value conversion settings.
type FormatConfig struct {
	// DateTime is the date-time output format: iso, unix or date (default: iso)
	DateTime string `env:"FORMAT_DATETIME" default:"iso"`

	// ValidateSelections rejects selection values that are not column options (default: true)
	ValidateSelections bool `env:"FORMAT_VALIDATE_SELECTIONS" default:"true"`

	// Timezone is the IANA zone used for date output and display (default: UTC)
	Timezone string `env:"FORMAT_TIMEZONE"`
}

// AuditConfig holds the audit database settings. Auditing is off when no
// database URL is set.
type AuditConfig struct {
	// URL is the PostgreSQL connection string (optional)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// Migrate applies pending schema migrations on startup (default: true)
	Migrate bool `env:"AUDIT_MIGRATE" default:"true"`
}

// ImportConfig holds local CSV import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of one import (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// Workers is the number of rows written concurrently per batch (default: 4)
	Workers int `env:"IMPORT_WORKERS" default:"4"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key checks on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Enabled reports whether an audit database is configured.
func (c *AuditConfig) Enabled() bool {
	return c.URL != ""
}

// Options converts the format settings to core options.
func (c *FormatConfig) Options() core.FormatOptions {
	return core.FormatOptions{
		DateTimeFormat:     c.DateTime,
		ValidateSelections: c.ValidateSelections,
		Timezone:           c.Timezone,
	}
}
