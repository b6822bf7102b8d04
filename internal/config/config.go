// Package config loads palletload settings from environment variables.
// Every field has a default except the database URL, and the whole
// configuration is validated on startup so misconfiguration fails fast.
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/palletload/internal/core"
	"github.com/JonMunkholm/palletload/internal/source"
)

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL selects the backend by scheme: postgres:// or postgresql:// for
	// PostgreSQL, sqlite: or file: for SQLite (required).
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds establishing a single connection (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`
}

// ImportConfig holds batch import and allocation settings.
type ImportConfig struct {
	// Dir is the folder scanned for .xlsx and .csv batch files (default: excel_data)
	Dir string `env:"IMPORT_DIR" default:"excel_data"`

	// PalletPrefix is the fixed part of every pallet id (default: PALLET)
	PalletPrefix string `env:"PALLET_PREFIX" default:"PALLET"`

	// PalletCapacity is the number of parcels a pallet holds (default: 20)
	PalletCapacity int `env:"PALLET_CAPACITY" default:"20"`

	// SequenceWidth is the zero-padded digit count of pallet ids (default: 5)
	SequenceWidth int `env:"PALLET_SEQUENCE_WIDTH" default:"5"`

	// BatchSize is the number of parcel rows written per transaction (default: 1000)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"1000"`

	// Timeout bounds a whole import run (default: 10m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// LockWait is how long an HTTP-triggered run waits for a running one (default: 0s)
	LockWait time.Duration `env:"IMPORT_LOCK_WAIT" default:"0s"`

	// ColumnMapFile is an optional YAML file of extra header aliases
	ColumnMapFile string `env:"COLUMN_MAP_FILE"`

	// CSVEncoding is the character set of CSV files: utf-8, windows-1252, iso-8859-1 (default: utf-8)
	CSVEncoding string `env:"CSV_ENCODING" default:"utf-8"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes /metrics and records import metrics (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// PalletFormat returns the pallet id format the import settings describe.
func (c *ImportConfig) PalletFormat() core.PalletFormat {
	return core.PalletFormat{
		Prefix:   c.PalletPrefix,
		Width:    c.SequenceWidth,
		Capacity: c.PalletCapacity,
	}
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}

	// Import validation
	if strings.TrimSpace(c.Import.Dir) == "" {
		errs = append(errs, "IMPORT_DIR must not be empty")
	}
	if err := c.Import.PalletFormat().Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("PALLET_PREFIX/PALLET_SEQUENCE_WIDTH/PALLET_CAPACITY: %v", err))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, "IMPORT_BATCH_SIZE must be positive")
	}
	if c.Import.Timeout <= 0 {
		errs = append(errs, "IMPORT_TIMEOUT must be positive")
	}
	if c.Import.LockWait < 0 {
		errs = append(errs, "IMPORT_LOCK_WAIT must be non-negative")
	}
	if _, err := source.LookupEncoding(c.Import.CSVEncoding); err != nil {
		errs = append(errs, fmt.Sprintf("CSV_ENCODING: %v", err))
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is reduced to its scheme, host and database name.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		MaskURL(c.Database.URL), c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Import: {Dir: %q, Pallet: %s%s/%d, BatchSize: %d}, ",
		c.Import.Dir, c.Import.PalletPrefix, strings.Repeat("0", max(c.Import.SequenceWidth, 0)),
		c.Import.PalletCapacity, c.Import.BatchSize)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}, ", c.Logging.Level, c.Logging.Format)
	fmt.Fprintf(&b, "Metrics: {Enabled: %v}", c.Metrics.Enabled)
	b.WriteString("}")
	return b.String()
}

// MaskURL hides credentials and query parameters of a database URL.
// Strings that do not parse as a URL are replaced entirely.
func MaskURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "[MASKED]"
	}
	if u.Opaque != "" {
		// sqlite:path carries no credentials
		return u.Scheme + ":" + u.Opaque
	}
	masked := u.Scheme + "://"
	if u.User != nil {
		masked += "[MASKED]@"
	}
	return masked + u.Host + u.Path
}
