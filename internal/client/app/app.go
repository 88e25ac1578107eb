// Package app builds the process-wide context object shared by the CLI
// commands: configuration, logger, record store, interception worker and the
// HTTP client routed through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/iudanet/geojournal/internal/client/geocode"
	"github.com/iudanet/geojournal/internal/client/journal"
	"github.com/iudanet/geojournal/internal/client/offline"
	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/client/storage/boltdb"
	"github.com/iudanet/geojournal/internal/client/storage/sqlite"
	"github.com/iudanet/geojournal/internal/config"
	"github.com/iudanet/geojournal/internal/platform/otel"
)

// App is constructed once at startup and passed to whoever needs it
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Journal    *journal.Store
	Worker     *offline.Worker
	HTTPClient *http.Client
	Geocoder   *geocode.Geocoder

	caches          *boltdb.CacheStorage
	shutdownTracing func(context.Context) error
}

// New builds the application context. The record store is opened lazily on
// first use. When the cache database cannot be opened (for example it is locked
// by a running proxy) the worker is absent and requests go straight to the
// network.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	shutdown, err := otel.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}

	a := &App{
		Config:          cfg,
		Logger:          logger,
		Journal:         journal.NewStore(JournalOpener(cfg), logger),
		shutdownTracing: shutdown,
		// Таймаут общий клиент не ограничивает: geocoder ставит его на свой запрос
		HTTPClient: &http.Client{},
	}

	caches, err := boltdb.NewCacheStorage(ctx, cfg.CachePath())
	if err != nil {
		logger.Warn("cache unavailable, requests go straight to the network", "path", cfg.CachePath(), "error", err)
	} else {
		a.caches = caches
		a.Worker = offline.NewWorker(WorkerConfig(cfg), caches, http.DefaultTransport, logger)
		// Воркер пропускает запросы без изменений до активации
		a.HTTPClient.Transport = a.Worker
	}

	if cfg.Geocode.Enabled {
		a.Geocoder = geocode.NewGeocoder(a.HTTPClient, cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, cfg.Geocode.Timeout.Duration(), logger)
	}

	return a, nil
}

// JournalOpener returns the opener for the configured storage driver
func JournalOpener(cfg *config.Config) journal.Opener {
	path := cfg.JournalPath()
	if cfg.Storage.Driver == config.DriverSQLite {
		return func(ctx context.Context) (storage.JournalStorage, error) {
			return sqlite.New(ctx, path)
		}
	}
	return func(ctx context.Context) (storage.JournalStorage, error) {
		return boltdb.New(ctx, path)
	}
}

// WorkerConfig maps the cache section of the configuration to the worker
func WorkerConfig(cfg *config.Config) offline.Config {
	return offline.Config{
		Origin:               cfg.Cache.Origin,
		CachePrefix:          cfg.Cache.Prefix,
		Version:              cfg.Cache.Version,
		StaticAssets:         cfg.Cache.StaticAssets,
		StaticHosts:          cfg.Cache.StaticHosts,
		GeocodeHosts:         cfg.Cache.GeocodeHosts,
		InstallRetries:       cfg.Cache.InstallRetries,
		InstallRetryInterval: cfg.Cache.InstallRetryInterval.Duration(),
	}
}

// RequireWorker returns the worker or storage.ErrCacheUnavailable
func (a *App) RequireWorker() (*offline.Worker, error) {
	if a.Worker == nil {
		return nil, fmt.Errorf("%w: cache database %s could not be opened", storage.ErrCacheUnavailable, a.Config.CachePath())
	}
	return a.Worker, nil
}

// Register installs and activates the worker. A failure leaves the worker
// passing requests through.
func (a *App) Register(ctx context.Context) error {
	w, err := a.RequireWorker()
	if err != nil {
		return err
	}
	if err := w.Register(ctx); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}
	return nil
}

// Close flushes pending cache writes and closes every resource
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.Worker != nil {
		a.Worker.Flush()
	}
	if a.caches != nil {
		if err := a.caches.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close cache: %w", err))
		}
	}
	if err := a.Journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
	}
	if err := a.shutdownTracing(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
	}

	return errors.Join(errs...)
}
