package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/geojournal/internal/client/offline"
	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/client/storage/boltdb"
	"github.com/iudanet/geojournal/internal/config"
	"github.com/iudanet/geojournal/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(t *testing.T, origin string) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Cache.Origin = origin
	cfg.Cache.StaticAssets = []string{"/", "/index.html"}
	cfg.Cache.InstallRetryInterval = config.Duration(time.Millisecond)
	return cfg
}

func TestApp_RegisterAndServeOffline(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("shell " + r.URL.Path))
	}))
	defer origin.Close()

	cfg := newTestConfig(t, origin.URL)
	ctx := context.Background()

	a, err := New(ctx, cfg, setupTestLogger())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, a.Close(ctx))
	}()

	require.NoError(t, a.Register(ctx))
	assert.Equal(t, offline.PhaseActive, a.Worker.Phase())
	// общий клиент не ограничен таймаутом геокодера
	assert.Zero(t, a.HTTPClient.Timeout)

	// Origin недоступен, оболочка отдается из кэша
	origin.Close()

	resp, err := a.HTTPClient.Get(origin.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shell /index.html", string(body))
	assert.Equal(t, offline.OutcomeHit, resp.Header.Get(offline.HeaderCache))
}

func TestApp_JournalDrivers(t *testing.T) {
	for _, driver := range []string{config.DriverBolt, config.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			cfg := newTestConfig(t, "http://localhost:1")
			cfg.Storage.Driver = driver
			ctx := context.Background()

			a, err := New(ctx, cfg, setupTestLogger())
			require.NoError(t, err)
			defer func() {
				assert.NoError(t, a.Close(ctx))
			}()

			id, err := a.Journal.Create(ctx, &models.JournalRecord{Photo: "p", Timestamp: 1})
			require.NoError(t, err)

			record, ok, err := a.Journal.ReadOne(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "p", record.Photo)
		})
	}
}

func TestApp_LockedCacheLeavesWorkerAbsent(t *testing.T) {
	cfg := newTestConfig(t, "http://localhost:1")
	ctx := context.Background()

	// Кэш уже открыт другим процессом
	held, err := boltdb.NewCacheStorage(ctx, cfg.CachePath())
	require.NoError(t, err)
	defer held.Close()

	a, err := New(ctx, cfg, setupTestLogger())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, a.Close(ctx))
	}()

	assert.Nil(t, a.Worker)
	_, err = a.RequireWorker()
	assert.ErrorIs(t, err, storage.ErrCacheUnavailable)
	assert.ErrorIs(t, a.Register(ctx), storage.ErrCacheUnavailable)
}

func TestApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t, "http://localhost:1")
	cfg.Storage.Driver = "postgres"

	_, err := New(context.Background(), cfg, setupTestLogger())
	assert.Error(t, err)
}
