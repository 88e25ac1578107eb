package offline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

const tracerName = "github.com/iudanet/geojournal/internal/client/offline"

var (
	// ErrNotInstalled is returned by Activate before a successful Install
	ErrNotInstalled = errors.New("worker is not installed")
	// ErrLifecycleBusy is returned when install or activation is already running
	ErrLifecycleBusy = errors.New("worker lifecycle transition in progress")
	// ErrSyncNotImplemented is returned by the background sync hook
	ErrSyncNotImplemented = errors.New("background sync is not implemented")
)

// BucketInfo describes one existing cache bucket
type BucketInfo struct {
	Name    string
	Entries int
	Bytes   int64
	Current bool
}

// Worker is the interception cache layer. Once active it serves every request
// passed to RoundTrip or ServeHTTP through the cache strategies.
type Worker struct {
	caches     storage.CacheStorage
	upstream   http.RoundTripper
	classifier *Classifier
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
	cfg        Config
	pending    sync.WaitGroup
	mu         sync.RWMutex
	phase      Phase
}

var _ http.RoundTripper = (*Worker)(nil)
var _ http.Handler = (*Worker)(nil)

// NewWorker creates a worker over the given buckets. Requests that reach the
// network are sent through upstream; nil means http.DefaultTransport.
func NewWorker(cfg Config, caches storage.CacheStorage, upstream http.RoundTripper, logger *slog.Logger) *Worker {
	if upstream == nil {
		upstream = http.DefaultTransport
	}
	return &Worker{
		cfg:        cfg,
		caches:     caches,
		upstream:   upstream,
		classifier: NewClassifier(cfg),
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
}

// Config returns the worker configuration
func (w *Worker) Config() Config {
	return w.cfg
}

// Phase returns the current lifecycle phase
func (w *Worker) Phase() Phase {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.phase
}

func (w *Worker) setPhase(p Phase) {
	w.mu.Lock()
	w.phase = p
	w.mu.Unlock()
}

// Classify returns the route the worker would use for req
func (w *Worker) Classify(req *http.Request) Route {
	return w.classifier.Classify(req)
}

// Register installs the worker unless the current static bucket already exists,
// then activates it. It is called once at startup.
func (w *Worker) Register(ctx context.Context) error {
	names, err := w.caches.CacheNames(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	if slices.Contains(names, w.cfg.StaticBucket()) {
		// Статический bucket этой версии уже заполнен предыдущей установкой
		w.logger.Debug("static bucket present, skipping install", "bucket", w.cfg.StaticBucket())
		w.setPhase(PhaseInstalled)
	} else if err := w.Install(ctx); err != nil {
		return err
	}

	if _, err := w.Activate(ctx); err != nil {
		return err
	}
	return nil
}

// Install fetches every manifest path against the origin and stores the
// responses in the static bucket. A path that still fails after all retries
// fails the install: the worker becomes redundant unless it was already active.
func (w *Worker) Install(ctx context.Context) error {
	w.mu.Lock()
	previous := w.phase
	if previous == PhaseInstalling || previous == PhaseActivating {
		w.mu.Unlock()
		return ErrLifecycleBusy
	}
	w.phase = PhaseInstalling
	w.mu.Unlock()

	if err := w.install(ctx); err != nil {
		if previous == PhaseActive {
			w.setPhase(PhaseActive)
		} else {
			w.setPhase(PhaseRedundant)
		}
		w.logger.Error("install failed", "error", err)
		return err
	}

	if previous == PhaseActive {
		w.setPhase(PhaseActive)
	} else {
		w.setPhase(PhaseInstalled)
	}
	w.logger.Info("install completed", "bucket", w.cfg.StaticBucket(), "assets", len(w.cfg.StaticAssets))
	return nil
}

func (w *Worker) install(ctx context.Context) error {
	origin, err := url.Parse(w.cfg.Origin)
	if err != nil || !origin.IsAbs() {
		return fmt.Errorf("invalid origin %q", w.cfg.Origin)
	}

	type asset struct {
		entry *models.CachedResponse
		key   string
	}
	assets := make([]asset, 0, len(w.cfg.StaticAssets))

	// Сначала загружаем весь манифест, запись только после успеха всех путей
	for _, p := range w.cfg.StaticAssets {
		ref, err := url.Parse(p)
		if err != nil {
			return fmt.Errorf("invalid manifest path %q: %w", p, err)
		}
		target := origin.ResolveReference(ref)

		entry, key, err := w.fetchAsset(ctx, target.String())
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", p, err)
		}
		assets = append(assets, asset{entry: entry, key: key})
	}

	bucket, err := w.caches.OpenCache(ctx, w.cfg.StaticBucket())
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}
	for _, a := range assets {
		if err := bucket.Put(ctx, a.key, a.entry); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
		}
	}
	return nil
}

// fetchAsset загружает один путь манифеста с повторами
func (w *Worker) fetchAsset(ctx context.Context, target string) (*models.CachedResponse, string, error) {
	b := backoff.NewExponentialBackOff()
	if w.cfg.InstallRetryInterval > 0 {
		b.InitialInterval = w.cfg.InstallRetryInterval
	}

	var key string
	entry, err := backoff.Retry(ctx, func() (*models.CachedResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		key = RequestIdentity(req)

		resp, err := w.upstream.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrNetworkUnavailable, err)
		}
		if !isSuccess(resp.StatusCode) {
			_ = resp.Body.Close()
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode < http.StatusInternalServerError {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return snapshot(req, resp, w.now())
	}, backoff.WithBackOff(b), backoff.WithMaxTries(max(w.cfg.InstallRetries, 1)))
	if err != nil {
		return nil, "", err
	}
	return entry, key, nil
}

// Activate deletes every bucket that is neither current bucket and takes
// control. It returns the names of the deleted buckets.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	switch w.phase {
	case PhaseInstalled, PhaseActive:
	case PhaseInstalling, PhaseActivating:
		w.mu.Unlock()
		return nil, ErrLifecycleBusy
	default:
		w.mu.Unlock()
		return nil, ErrNotInstalled
	}
	previous := w.phase
	w.phase = PhaseActivating
	w.mu.Unlock()

	deleted, err := w.deleteStaleBuckets(ctx)
	if err != nil {
		w.setPhase(previous)
		return deleted, err
	}

	w.setPhase(PhaseActive)
	w.logger.Info("worker activated",
		"static", w.cfg.StaticBucket(),
		"dynamic", w.cfg.DynamicBucket(),
		"deleted", deleted,
	)
	return deleted, nil
}

func (w *Worker) deleteStaleBuckets(ctx context.Context) ([]string, error) {
	names, err := w.caches.CacheNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	var deleted []string
	for _, name := range names {
		if w.cfg.IsCurrentBucket(name) {
			continue
		}
		ok, err := w.caches.DeleteCache(ctx, name)
		if err != nil {
			return deleted, fmt.Errorf("%w: failed to delete %s: %w", storage.ErrCacheUnavailable, name, err)
		}
		if ok {
			deleted = append(deleted, name)
			w.logger.Debug("stale bucket deleted", "bucket", name)
		}
	}
	return deleted, nil
}

// Buckets lists every existing bucket with its entry count and size
func (w *Worker) Buckets(ctx context.Context) ([]BucketInfo, error) {
	names, err := w.caches.CacheNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
	}

	infos := make([]BucketInfo, 0, len(names))
	for _, name := range names {
		bucket, err := w.caches.OpenCache(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
		}
		stats, err := bucket.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrCacheUnavailable, err)
		}
		infos = append(infos, BucketInfo{
			Name:    name,
			Entries: stats.Entries,
			Bytes:   stats.Bytes,
			Current: w.cfg.IsCurrentBucket(name),
		})
	}
	return infos, nil
}

// RoundTrip implements http.RoundTripper. Requests are passed through untouched
// until the worker is active and for routes classified as bypass; errors are
// only returned for those.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if w.Phase() != PhaseActive {
		return w.upstream.RoundTrip(req)
	}
	if w.classifier.Classify(req).Strategy == StrategyBypass {
		return w.upstream.RoundTrip(req)
	}
	return w.Handle(req), nil
}

// Handle classifies req and serves it through the matching strategy. It always
// returns a response: when neither the network nor the cache can answer it is
// the synthesized offline response.
func (w *Worker) Handle(req *http.Request) *http.Response {
	route := w.classifier.Classify(req)

	ctx, span := w.tracer.Start(req.Context(), "offline.Handle",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL.String()),
			attribute.String("offline.strategy", route.Strategy.String()),
			attribute.String("offline.bucket", route.Bucket),
			attribute.String("offline.rule", route.Rule),
		),
	)
	defer span.End()
	req = req.WithContext(ctx)

	var (
		resp    *http.Response
		outcome string
	)
	switch route.Strategy {
	case StrategyCacheFirst:
		resp, outcome = w.cacheFirst(req, route)
	case StrategyNetworkFirst:
		resp, outcome = w.networkFirst(req, route)
	default:
		resp, outcome = w.passThrough(req)
	}

	span.SetAttributes(attribute.String("offline.outcome", outcome))
	if outcome == OutcomeOffline {
		span.SetStatus(codes.Error, "offline")
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	resp.Header.Set(HeaderCache, outcome)
	return resp
}

// Flush waits for background cache writes to finish
func (w *Worker) Flush() {
	w.pending.Wait()
}

// Sync is the background sync hook. It is not implemented.
func (w *Worker) Sync(ctx context.Context, tag string) error {
	return ErrSyncNotImplemented
}
