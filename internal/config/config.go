// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Import   ImportConfig
	Export   ExportConfig
	Data     DataConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request, uploads included (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing a response (default: 120s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-import requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// ImportConfig holds spreadsheet import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum size of one uploaded file in bytes (default: 50MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"52428800"`

	// MaxFiles is the maximum number of files per import request (default: 20)
	MaxFiles int `env:"IMPORT_MAX_FILES" default:"20"`

	// ChunkSize is the number of rows processed between yields (default: 500)
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"500"`

	// DecodeConcurrency bounds parallel file decoding within one import (default: 4)
	DecodeConcurrency int `env:"IMPORT_DECODE_CONCURRENCY" default:"4"`

	// CacheSize is the per-cache entry limit of the coercion caches (default: 4096)
	CacheSize int `env:"IMPORT_CACHE_SIZE" default:"4096"`

	// MaxConcurrent is the maximum number of parallel imports (default: 3)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration of one import (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`

	// ContractRule selects the contract status derivation: combined or max (default: combined)
	ContractRule string `env:"CONTRACT_RULE" default:"combined"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// ChunkSize is the number of records written between yields (default: 1000)
	ChunkSize int `env:"EXPORT_CHUNK_SIZE" default:"1000"`

	// DefaultFormat is used when a request names no format: csv or xlsx (default: csv)
	DefaultFormat string `env:"EXPORT_DEFAULT_FORMAT" default:"csv"`

	// SheetName is the worksheet name of XLSX exports (default: Adressen)
	SheetName string `env:"EXPORT_SHEET_NAME" default:"Adressen"`
}

// DataConfig holds startup data settings.
type DataConfig struct {
	// SeedFiles are spreadsheets imported into the collection at startup
	SeedFiles []string `env:"DATA_SEED_FILES"`

	// ActivityCapacity is the number of activity log entries kept in memory
	ActivityCapacity int `env:"DATA_ACTIVITY_CAPACITY" default:"1000"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for the import endpoint (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
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
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
