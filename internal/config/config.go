// Package config loads the journal configuration.
// Priority: CLI flags > env vars (GEOJOURNAL_*) > TOML file > defaults.
// Flags are applied by the CLI on top of the value returned by Load.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/iudanet/geojournal/internal/client/offline"
)

// EnvPrefix is the prefix of every environment variable
const EnvPrefix = "GEOJOURNAL_"

// Storage drivers
const (
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Config holds all configuration settings
type Config struct {
	DataDir   string          `toml:"data_dir" env:"DATA_DIR"`
	Storage   StorageConfig   `toml:"storage" envPrefix:"STORAGE_"`
	Cache     CacheConfig     `toml:"cache" envPrefix:"CACHE_"`
	Geocode   GeocodeConfig   `toml:"geocode" envPrefix:"GEOCODE_"`
	Proxy     ProxyConfig     `toml:"proxy" envPrefix:"PROXY_"`
	Logging   LoggingConfig   `toml:"logging" envPrefix:"LOG_"`
	Telemetry TelemetryConfig `toml:"telemetry" envPrefix:"OTEL_"`
}

// StorageConfig holds record store settings
type StorageConfig struct {
	Driver string `toml:"driver" env:"DRIVER"` // "bolt" или "sqlite"
	Path   string `toml:"path" env:"PATH"`     // пусто - файл в DataDir
}

// CacheConfig holds interception cache settings
type CacheConfig struct {
	Path                 string   `toml:"path" env:"PATH"`
	Origin               string   `toml:"origin" env:"ORIGIN"`
	Prefix               string   `toml:"prefix" env:"PREFIX"`
	Version              string   `toml:"version" env:"VERSION"`
	StaticAssets         []string `toml:"static_assets" env:"STATIC_ASSETS" envSeparator:","`
	StaticHosts          []string `toml:"static_hosts" env:"STATIC_HOSTS" envSeparator:","`
	GeocodeHosts         []string `toml:"geocode_hosts" env:"GEOCODE_HOSTS" envSeparator:","`
	InstallRetryInterval Duration `toml:"install_retry_interval" env:"INSTALL_RETRY_INTERVAL"`
	InstallRetries       uint     `toml:"install_retries" env:"INSTALL_RETRIES"`
}

// GeocodeConfig holds reverse-geocoding settings
type GeocodeConfig struct {
	BaseURL   string   `toml:"base_url" env:"BASE_URL"`
	UserAgent string   `toml:"user_agent" env:"USER_AGENT"`
	Timeout   Duration `toml:"timeout" env:"TIMEOUT"`
	Enabled   bool     `toml:"enabled" env:"ENABLED"`
}

// ProxyConfig holds loopback proxy settings
type ProxyConfig struct {
	Addr string `toml:"addr" env:"ADDR"`
	// RateLimit - запросов в минуту с одного клиента, 0 отключает ограничение
	RateLimit int `toml:"rate_limit" env:"RATE_LIMIT"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level" env:"LEVEL"`   // "debug", "info", "warn", "error"
	Format string `toml:"format" env:"FORMAT"` // "text" или "json"
}

// TelemetryConfig holds tracing settings. Tracing is disabled without an endpoint.
type TelemetryConfig struct {
	Endpoint    string `toml:"endpoint" env:"ENDPOINT"`
	ServiceName string `toml:"service_name" env:"SERVICE_NAME"`
}

// Duration is a time.Duration that can be unmarshaled from TOML and env strings.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// DefaultConfig returns a Config with all default values.
func DefaultConfig() *Config {
	// Значения кэша берутся из воркера, чтобы списки не расходились
	cache := offline.DefaultConfig()

	return &Config{
		DataDir: defaultDataDir(),
		Storage: StorageConfig{
			Driver: DriverBolt,
		},
		Cache: CacheConfig{
			Origin:               cache.Origin,
			Prefix:               cache.CachePrefix,
			Version:              cache.Version,
			StaticAssets:         cache.StaticAssets,
			StaticHosts:          cache.StaticHosts,
			GeocodeHosts:         cache.GeocodeHosts,
			InstallRetries:       cache.InstallRetries,
			InstallRetryInterval: Duration(cache.InstallRetryInterval),
		},
		Geocode: GeocodeConfig{
			Enabled:   true,
			BaseURL:   "https://nominatim.openstreetmap.org",
			UserAgent: "geojournal/1.0",
			Timeout:   Duration(10 * time.Second),
		},
		Proxy: ProxyConfig{
			Addr:      "127.0.0.1:8787",
			RateLimit: 600,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "geojournal",
		},
	}
}

// defaultDataDir возвращает ~/.geojournal или текущую директорию
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".geojournal"
	}
	return filepath.Join(home, ".geojournal")
}

// DefaultConfigPath returns the config file looked up when none is given
func DefaultConfigPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path and the
// environment. An empty path means DefaultConfigPath, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverBolt, DriverSQLite}, c.Storage.Driver) {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	if c.Cache.Prefix == "" || c.Cache.Version == "" {
		return errors.New("cache prefix and version are required")
	}
	if c.Proxy.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative: %d", c.Proxy.RateLimit)
	}
	return nil
}

// JournalPath returns the record store file for the configured driver
func (c *Config) JournalPath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Driver == DriverSQLite {
		return filepath.Join(c.DataDir, "journal.sqlite")
	}
	return filepath.Join(c.DataDir, "journal.db")
}

// CachePath returns the cache bucket database file
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	return filepath.Join(c.DataDir, "cache.db")
}
