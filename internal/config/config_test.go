package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/idosync/internal/tracing"
)

func writeServiceAccount(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))
	return path
}

func TestBackend(t *testing.T) {
	tests := []struct {
		url      string
		backend  Backend
		location string
	}{
		{url: "https://demo.firebaseio.com", backend: BackendRTDB, location: "https://demo.firebaseio.com"},
		{url: "http://localhost:9000", backend: BackendRTDB, location: "http://localhost:9000"},
		{url: "sqlite://local.db", backend: BackendSQLite, location: "local.db"},
		{url: "sqlite:///tmp/x/local.db", backend: BackendSQLite, location: "/tmp/x/local.db"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			backend, location, err := Config{DatabaseURL: tt.url}.Backend()
			require.NoError(t, err)
			require.Equal(t, tt.backend, backend)
			require.Equal(t, tt.location, location)
		})
	}
}

func TestBackend_Invalid(t *testing.T) {
	for _, url := range []string{"", "  ", "ftp://x", "sqlite://", "demo.firebaseio.com"} {
		_, _, err := Config{DatabaseURL: url}.Backend()
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr, "url %q", url)
		require.Equal(t, "database_url", cfgErr.Field)
	}
}

func TestValidate_RTDBNeedsServiceAccount(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "https://demo.firebaseio.com"

	err := cfg.Validate()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "service_account", cfgErr.Field)

	cfg.ServiceAccount = filepath.Join(t.TempDir(), "missing.json")
	err = cfg.Validate()
	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, err, os.ErrNotExist)

	cfg.ServiceAccount = writeServiceAccount(t)
	require.NoError(t, cfg.Validate())
}

func TestValidate_SQLiteNeedsNoCredentials(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "sqlite://" + filepath.Join(t.TempDir(), "db.sqlite")
	require.NoError(t, cfg.Validate())
}

func TestValidate_Tracing(t *testing.T) {
	cfg := Defaults()
	cfg.DatabaseURL = "sqlite://x.db"
	cfg.Tracing.SampleRate = 2

	err := cfg.Validate()
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "tracing", cfgErr.Field)
	require.Contains(t, err.Error(), "sample_rate")
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*tracing.Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*tracing.Config) {}},
		{name: "negative rate", mutate: func(c *tracing.Config) { c.SampleRate = -0.1 }, wantErr: "sample_rate"},
		{name: "unknown exporter", mutate: func(c *tracing.Config) { c.Exporter = "zipkin" }, wantErr: "exporter"},
		{name: "file without path", mutate: func(c *tracing.Config) { c.Enabled = true; c.FilePath = "" }, wantErr: "file_path"},
		{name: "disabled file without path", mutate: func(c *tracing.Config) { c.FilePath = "" }},
		{name: "otlp without endpoint", mutate: func(c *tracing.Config) {
			c.Enabled, c.Exporter, c.OTLPEndpoint = true, "otlp", ""
		}, wantErr: "otlp_endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tracing.DefaultConfig()
			tt.mutate(&cfg)
			err := ValidateTracing(cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDefaultConfigTemplate_ParsesAsYAML(t *testing.T) {
	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &parsed))
	require.Equal(t, false, parsed["dry_run"])
	require.Contains(t, parsed, "tracing")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	require.ErrorContains(t, WriteDefaultConfig(path), "already exists")
}
