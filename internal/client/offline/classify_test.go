package offline

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Classify(t *testing.T) {
	cfg := newTestConfig()
	c := NewClassifier(cfg)

	tests := []struct {
		name     string
		method   string
		url      string
		strategy Strategy
		bucket   string
		rule     string
	}{
		{
			name:     "non-GET bypasses",
			method:   http.MethodPost,
			url:      "http://app.test/index.html",
			strategy: StrategyBypass,
			rule:     RuleMethod,
		},
		{
			name:     "non-http scheme bypasses",
			method:   http.MethodGet,
			url:      "ftp://app.test/index.html",
			strategy: StrategyBypass,
			rule:     RuleScheme,
		},
		{
			name:     "manifest path",
			method:   http.MethodGet,
			url:      "http://app.test/index.html",
			strategy: StrategyCacheFirst,
			bucket:   "geojournal-static-v2",
			rule:     RuleManifest,
		},
		{
			name:     "manifest root with query",
			method:   http.MethodGet,
			url:      "http://app.test/?utm=1",
			strategy: StrategyCacheFirst,
			bucket:   "geojournal-static-v2",
			rule:     RuleManifest,
		},
		{
			name:     "manifest path on another host",
			method:   http.MethodGet,
			url:      "http://other.test/index.html",
			strategy: StrategyNetworkFirst,
			bucket:   "geojournal-dynamic-v2",
			rule:     RuleDefault,
		},
		{
			name:     "cdn host",
			method:   http.MethodGet,
			url:      "https://unpkg.com/leaflet/dist/leaflet.css",
			strategy: StrategyCacheFirst,
			bucket:   "geojournal-static-v2",
			rule:     RuleStatic,
		},
		{
			name:     "tile subdomain",
			method:   http.MethodGet,
			url:      "https://b.tile.openstreetmap.org/3/4/2.png",
			strategy: StrategyCacheFirst,
			bucket:   "geojournal-static-v2",
			rule:     RuleStatic,
		},
		{
			name:     "suffix without dot is not a subdomain",
			method:   http.MethodGet,
			url:      "https://evilunpkg.com/x.js",
			strategy: StrategyNetworkFirst,
			bucket:   "geojournal-dynamic-v2",
			rule:     RuleDefault,
		},
		{
			name:     "geocode host",
			method:   http.MethodGet,
			url:      "https://nominatim.openstreetmap.org/reverse?lat=1&lon=2",
			strategy: StrategyNetworkFirst,
			bucket:   "geojournal-dynamic-v2",
			rule:     RuleGeocode,
		},
		{
			name:     "everything else",
			method:   http.MethodGet,
			url:      "http://app.test/api/feed",
			strategy: StrategyNetworkFirst,
			bucket:   "geojournal-dynamic-v2",
			rule:     RuleDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, tt.url, nil)
			require.NoError(t, err)

			route := c.Classify(req)
			assert.Equal(t, tt.strategy, route.Strategy)
			assert.Equal(t, tt.bucket, route.Bucket)
			assert.Equal(t, tt.rule, route.Rule)
		})
	}
}

func TestRequestIdentity(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://app.test/page?x=1#section", nil)
	require.NoError(t, err)
	assert.Equal(t, "GET http://app.test/page?x=1", RequestIdentity(req))

	for _, raw := range []string{"http://app.test", "http://app.test/"} {
		req, err := http.NewRequest(http.MethodGet, raw, nil)
		require.NoError(t, err)
		assert.Equal(t, "GET http://app.test/", RequestIdentity(req), raw)
	}

	req, err = http.NewRequest(http.MethodGet, "http://app.test?x=1", nil)
	require.NoError(t, err)
	assert.Equal(t, "GET http://app.test/?x=1", RequestIdentity(req))
}

func TestConfig_BucketNames(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "geojournal-static-v1", cfg.StaticBucket())
	assert.Equal(t, "geojournal-dynamic-v1", cfg.DynamicBucket())
	assert.True(t, cfg.IsCurrentBucket("geojournal-dynamic-v1"))
	assert.False(t, cfg.IsCurrentBucket("geojournal-v1"))
}

func TestPhaseAndStrategyStrings(t *testing.T) {
	assert.Equal(t, "active", PhaseActive.String())
	assert.Equal(t, "redundant", PhaseRedundant.String())
	assert.Equal(t, "cache-first", StrategyCacheFirst.String())
	assert.Equal(t, "network-first", StrategyNetworkFirst.String())
}
