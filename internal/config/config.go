// Package config provides configuration types, defaults and validation for
// idosync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/idosync/internal/log"
	"github.com/zjrosen/idosync/internal/tracing"
)

// Backend identifies the kind of store a database URL points at.
type Backend string

const (
	// BackendRTDB is a Firebase Realtime Database reached over HTTPS.
	BackendRTDB Backend = "rtdb"
	// BackendSQLite is a local SQLite file, for rehearsals.
	BackendSQLite Backend = "sqlite"
)

const sqliteScheme = "sqlite://"

// Config holds all idosync configuration.
type Config struct {
	ServiceAccount string         `mapstructure:"service_account"`
	DatabaseURL    string         `mapstructure:"database_url"`
	DryRun         bool           `mapstructure:"dry_run"`
	DeriveFromKey  bool           `mapstructure:"derive_from_key"` // derive missing ids from the record key itself
	JSON           bool           `mapstructure:"json"`            // print the summary as JSON
	Verbose        bool           `mapstructure:"verbose"`         // list every change
	Debug          bool           `mapstructure:"debug"`
	LogFile        string         `mapstructure:"log_file"` // empty logs to stderr
	Tracing        tracing.Config `mapstructure:"tracing"`
}

// ConfigurationError reports a missing or invalid setting. It is always
// detected before any store is contacted.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Tracing: tracing.DefaultConfig(),
	}
}

// Backend reports which store DatabaseURL selects and the location within
// it: the database URL for RTDB, the file path for SQLite.
func (c Config) Backend() (Backend, string, error) {
	u := strings.TrimSpace(c.DatabaseURL)
	switch {
	case u == "":
		return "", "", &ConfigurationError{Field: "database_url", Reason: "is required"}
	case strings.HasPrefix(u, sqliteScheme):
		path := strings.TrimPrefix(u, sqliteScheme)
		if path == "" {
			return "", "", &ConfigurationError{Field: "database_url", Reason: "sqlite URL has no file path"}
		}
		return BackendSQLite, path, nil
	case strings.HasPrefix(u, "https://"), strings.HasPrefix(u, "http://"):
		return BackendRTDB, u, nil
	default:
		return "", "", &ConfigurationError{
			Field:  "database_url",
			Reason: fmt.Sprintf("must start with https:// or %s, got %q", sqliteScheme, u),
		}
	}
}

// Validate checks the configuration for errors. The service account file
// must exist and be readable when the backend is RTDB.
func (c Config) Validate() error {
	backend, _, err := c.Backend()
	if err != nil {
		return err
	}

	if backend == BackendRTDB {
		if c.ServiceAccount == "" {
			return &ConfigurationError{Field: "service_account", Reason: "is required for " + c.DatabaseURL}
		}
		f, err := os.Open(c.ServiceAccount)
		if err != nil {
			return &ConfigurationError{Field: "service_account", Reason: "cannot be read", Err: err}
		}
		_ = f.Close()
	}

	if err := ValidateTracing(c.Tracing); err != nil {
		return &ConfigurationError{Field: "tracing", Reason: "invalid", Err: err}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# idosync configuration
#
# Every setting can also be given as a flag (--database-url) or an
# environment variable (IDOSYNC_DATABASE_URL).

# Database to migrate: https://<project>.firebaseio.com or sqlite://<file>
# database_url: https://my-project.firebaseio.com

# Service account key, required for https:// databases
# service_account: ./service-account.json

# Compute changes without writing them
dry_run: false

# Derive identifiers for id-less tasks from the task key instead of TASK-<key>
derive_from_key: false

# Output
json: false
verbose: false

# Logging
debug: false
# log_file: idosync.log

# Tracing (OpenTelemetry)
tracing:
  enabled: false
  exporter: file          # file, stdout, otlp or none
  file_path: idosync-traces.jsonl
  # otlp_endpoint: localhost:4317
  sample_rate: 1.0
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist. An existing file is left alone.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s", configPath)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
