package offline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/iudanet/geojournal/internal/client/storage"
	"github.com/iudanet/geojournal/internal/models"
)

var errOffline = errors.New("dial tcp: connection refused")

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport отвечает заданными ответами и считает вызовы
type fakeTransport struct {
	responses map[string]fakeResponse
	calls     map[string]int
	mu        sync.Mutex
	offline   bool
}

type fakeResponse struct {
	header http.Header
	body   string
	status int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: make(map[string]fakeResponse),
		calls:     make(map[string]int),
	}
}

func (f *fakeTransport) set(url string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fakeResponse{status: status, body: body}
}

func (f *fakeTransport) setWithHeader(url string, status int, body string, header http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = fakeResponse{status: status, body: body, header: header}
}

func (f *fakeTransport) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeTransport) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	url := req.URL.String()
	f.calls[url]++
	if f.offline {
		return nil, errOffline
	}

	r, ok := f.responses[url]
	if !ok {
		r = fakeResponse{status: http.StatusNotFound, body: "not found"}
	}
	header := make(http.Header)
	for k, v := range r.header {
		header[k] = append([]string(nil), v...)
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

// memoryCaches - in-memory реализация storage.CacheStorage
type memoryCaches struct {
	buckets  map[string]map[string]*models.CachedResponse
	openErr  error
	namesErr error
	putErr   error
	mu       sync.Mutex
}

func newMemoryCaches() *memoryCaches {
	return &memoryCaches{buckets: make(map[string]map[string]*models.CachedResponse)}
}

func (m *memoryCaches) OpenCache(ctx context.Context, name string) (storage.Cache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = make(map[string]*models.CachedResponse)
	}
	return &memoryCache{parent: m, name: name}, nil
}

func (m *memoryCaches) CacheNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.namesErr != nil {
		return nil, m.namesErr
	}
	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memoryCaches) DeleteCache(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.buckets[name]
	delete(m.buckets, name)
	return ok, nil
}

func (m *memoryCaches) entry(bucket, key string) (*models.CachedResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.buckets[bucket][key]
	return e, ok
}

func (m *memoryCaches) seed(bucket, key string, entry *models.CachedResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		m.buckets[bucket] = make(map[string]*models.CachedResponse)
	}
	m.buckets[bucket][key] = entry
}

type memoryCache struct {
	parent *memoryCaches
	name   string
}

func (c *memoryCache) Name() string { return c.name }

func (c *memoryCache) Match(ctx context.Context, key string) (*models.CachedResponse, bool, error) {
	e, ok := c.parent.entry(c.name, key)
	return e, ok, nil
}

func (c *memoryCache) Put(ctx context.Context, key string, entry *models.CachedResponse) error {
	c.parent.mu.Lock()
	putErr := c.parent.putErr
	c.parent.mu.Unlock()
	if putErr != nil {
		return putErr
	}
	c.parent.seed(c.name, key, entry)
	return nil
}

func (c *memoryCache) Stats(ctx context.Context) (storage.CacheStats, error) {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()

	var stats storage.CacheStats
	for _, e := range c.parent.buckets[c.name] {
		stats.Entries++
		stats.Bytes += e.Size()
	}
	return stats, nil
}
