package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/geojournal/internal/client/offline"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "geojournal", cfg.Cache.Prefix)
	assert.Equal(t, "v1", cfg.Cache.Version)
	assert.Contains(t, cfg.Cache.StaticAssets, "/index.html")
	assert.Equal(t, uint(3), cfg.Cache.InstallRetries)
	assert.Empty(t, cfg.Telemetry.Endpoint)
	assert.NoError(t, cfg.Validate())

	worker := offline.DefaultConfig()
	assert.Equal(t, worker.StaticAssets, cfg.Cache.StaticAssets)
	assert.Equal(t, worker.StaticHosts, cfg.Cache.StaticHosts)
	assert.Equal(t, worker.GeocodeHosts, cfg.Cache.GeocodeHosts)
	assert.Equal(t, worker.Origin, cfg.Cache.Origin)
	assert.Equal(t, worker.InstallRetryInterval, cfg.Cache.InstallRetryInterval.Duration())
}

func TestLoad_TOMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
data_dir = "/tmp/journal"

[storage]
driver = "sqlite"

[cache]
version = "v7"
static_assets = ["/", "/app.html"]
install_retry_interval = "2s"

[logging]
level = "debug"
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/journal", cfg.DataDir)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "v7", cfg.Cache.Version)
	assert.Equal(t, []string{"/", "/app.html"}, cfg.Cache.StaticAssets)
	assert.Equal(t, 2*time.Second, cfg.Cache.InstallRetryInterval.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// Значения, не заданные в файле, остаются по умолчанию
	assert.Equal(t, "geojournal", cfg.Cache.Prefix)
	assert.Equal(t, filepath.Join("/tmp/journal", "journal.sqlite"), cfg.JournalPath())
	assert.Equal(t, filepath.Join("/tmp/journal", "cache.db"), cfg.CachePath())
}

func TestLoad_EnvOverridesTOML(t *testing.T) {
	path := writeConfig(t, `
[cache]
version = "v7"

[logging]
level = "debug"
`)

	t.Setenv("GEOJOURNAL_CACHE_VERSION", "v8")
	t.Setenv("GEOJOURNAL_CACHE_STATIC_HOSTS", "cdn.example.com,tiles.example.com")
	t.Setenv("GEOJOURNAL_GEOCODE_TIMEOUT", "3s")
	t.Setenv("GEOJOURNAL_OTEL_ENDPOINT", "localhost:4318")
	t.Setenv("GEOJOURNAL_STORAGE_PATH", "/var/lib/journal.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v8", cfg.Cache.Version)
	assert.Equal(t, []string{"cdn.example.com", "tiles.example.com"}, cfg.Cache.StaticHosts)
	assert.Equal(t, 3*time.Second, cfg.Geocode.Timeout.Duration())
	assert.Equal(t, "localhost:4318", cfg.Telemetry.Endpoint)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/journal.db", cfg.JournalPath())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("explicit missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[cache\nversion ="))
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Load(writeConfig(t, "[geocode]\ntimeout = \"soon\"\n"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("GEOJOURNAL_CACHE_INSTALL_RETRIES", "many")
		_, err := Load(writeConfig(t, ""))
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }},
		{"unknown level", func(c *Config) { c.Logging.Level = "trace" }},
		{"unknown format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty version", func(c *Config) { c.Cache.Version = "" }},
		{"negative rate limit", func(c *Config) { c.Proxy.RateLimit = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
