package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

const (
	// HeaderCache reports how the layer produced the response
	HeaderCache = "X-Geojournal-Cache"
	// HeaderOffline marks the synthesized offline response
	HeaderOffline = "X-Geojournal-Offline"

	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeNetwork = "network"
	OutcomeOffline = "offline"

	offlineBody = "Offline - content unavailable"
)

// cacheFirst отдает сохраненный ответ без сети, при промахе идет в сеть
func (w *Worker) cacheFirst(req *http.Request, route Route) (*http.Response, string) {
	ctx := req.Context()
	key := RequestIdentity(req)

	bucket := w.openBucket(ctx, route.Bucket)
	if bucket != nil {
		if entry := w.lookup(ctx, bucket, key, req); entry != nil {
			return toResponse(req, entry), OutcomeHit
		}
	}

	resp, err := w.upstream.RoundTrip(req)
	if err != nil {
		w.logger.Warn("network unavailable", "url", req.URL.String(), "error", err)
		return offlineResponse(req), OutcomeOffline
	}
	if !isSuccess(resp.StatusCode) || bucket == nil {
		return resp, OutcomeMiss
	}

	entry, err := snapshot(req, resp, w.now())
	if err != nil {
		w.logger.Warn("failed to read response", "url", req.URL.String(), "error", err)
		return offlineResponse(req), OutcomeOffline
	}

	// Копия пишется в фоне, ответ не ждет записи
	w.putAsync(ctx, bucket, key, entry)
	return toResponse(req, entry), OutcomeMiss
}

// networkFirst идет в сеть, при сбое сети отдает последний успешный ответ
func (w *Worker) networkFirst(req *http.Request, route Route) (*http.Response, string) {
	ctx := req.Context()
	key := RequestIdentity(req)

	bucket := w.openBucket(ctx, route.Bucket)

	resp, err := w.upstream.RoundTrip(req)
	if err == nil {
		if !isSuccess(resp.StatusCode) || bucket == nil {
			return resp, OutcomeNetwork
		}

		entry, readErr := snapshot(req, resp, w.now())
		if readErr == nil {
			w.put(ctx, bucket, key, entry)
			return toResponse(req, entry), OutcomeNetwork
		}
		err = readErr
	}

	w.logger.Warn("network unavailable, falling back to cache", "url", req.URL.String(), "error", err)
	if bucket != nil {
		if entry := w.lookup(ctx, bucket, key, req); entry != nil {
			return toResponse(req, entry), OutcomeHit
		}
	}
	return offlineResponse(req), OutcomeOffline
}

func (w *Worker) passThrough(req *http.Request) (*http.Response, string) {
	resp, err := w.upstream.RoundTrip(req)
	if err != nil {
		w.logger.Warn("network unavailable", "url", req.URL.String(), "error", err)
		return offlineResponse(req), OutcomeOffline
	}
	return resp, OutcomeNetwork
}

// openBucket возвращает nil, если bucket недоступен; это считается промахом
func (w *Worker) openBucket(ctx context.Context, name string) storage.Cache {
	bucket, err := w.caches.OpenCache(ctx, name)
	if err != nil {
		w.logger.Warn("cache bucket unavailable", "bucket", name, "error", err)
		return nil
	}
	return bucket
}

func (w *Worker) lookup(ctx context.Context, bucket storage.Cache, key string, req *http.Request) *models.CachedResponse {
	entry, ok, err := bucket.Match(ctx, key)
	if err != nil {
		w.logger.Warn("cache match failed", "bucket", bucket.Name(), "key", key, "error", err)
		return nil
	}
	if !ok || !entry.MatchesVary(req.Header) {
		return nil
	}
	return entry
}

func (w *Worker) put(ctx context.Context, bucket storage.Cache, key string, entry *models.CachedResponse) {
	if err := bucket.Put(ctx, key, entry); err != nil {
		w.logger.Warn("cache put failed", "bucket", bucket.Name(), "key", key, "error", err)
	}
}

func (w *Worker) putAsync(ctx context.Context, bucket storage.Cache, key string, entry *models.CachedResponse) {
	ctx = context.WithoutCancel(ctx)
	w.pending.Go(func() {
		w.put(ctx, bucket, key, entry)
	})
}

// snapshot читает и закрывает тело ответа
func snapshot(req *http.Request, resp *http.Response, now time.Time) (*models.CachedResponse, error) {
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", storage.ErrNetworkUnavailable, err)
	}

	return &models.CachedResponse{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		Vary:       varyValues(req.Header, resp.Header),
		CachedAt:   now.UTC(),
	}, nil
}

// varyValues сохраняет значения заголовков запроса, перечисленных в Vary ответа
func varyValues(reqHeader, respHeader http.Header) map[string]string {
	var vary map[string]string
	for _, line := range respHeader.Values("Vary") {
		for _, name := range strings.Split(line, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if vary == nil {
				vary = make(map[string]string)
			}
			if name == "*" {
				vary["*"] = ""
				continue
			}
			name = http.CanonicalHeaderKey(name)
			vary[name] = reqHeader.Get(name)
		}
	}
	return vary
}

func toResponse(req *http.Request, entry *models.CachedResponse) *http.Response {
	header := entry.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Set("Content-Length", strconv.Itoa(len(entry.Body)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
		Request:       req,
	}
}

// offlineResponse is the synthesized 503 returned when neither the network nor
// the cache can answer. HeaderOffline distinguishes it from an origin 503.
func offlineResponse(req *http.Request) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "text/plain; charset=utf-8")
	header.Set("Content-Length", strconv.Itoa(len(offlineBody)))
	header.Set(HeaderOffline, "1")

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable)),
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(offlineBody)),
		ContentLength: int64(len(offlineBody)),
		Request:       req,
	}
}

// IsOffline reports whether resp is the synthesized offline response
func IsOffline(resp *http.Response) bool {
	return resp != nil && resp.Header.Get(HeaderOffline) == "1"
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
