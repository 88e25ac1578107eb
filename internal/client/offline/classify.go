package offline

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Rule names the classification rule that produced a Route
const (
	RuleMethod   = "method"
	RuleScheme   = "scheme"
	RuleManifest = "manifest"
	RuleStatic   = "static-host"
	RuleGeocode  = "geocode-host"
	RuleDefault  = "default"
)

// Route is the result of classifying a request
type Route struct {
	Strategy Strategy
	Bucket   string
	Rule     string
}

// Classifier maps requests to routes. It is immutable after construction and
// safe for concurrent use.
type Classifier struct {
	manifest     map[string]struct{}
	originHost   string
	staticHosts  []string
	geocodeHosts []string
	static       string
	dynamic      string
}

// NewClassifier builds the classification tables from cfg
func NewClassifier(cfg Config) *Classifier {
	c := &Classifier{
		manifest:     make(map[string]struct{}, len(cfg.StaticAssets)),
		staticHosts:  normalizeHosts(cfg.StaticHosts),
		geocodeHosts: normalizeHosts(cfg.GeocodeHosts),
		static:       cfg.StaticBucket(),
		dynamic:      cfg.DynamicBucket(),
	}
	for _, p := range cfg.StaticAssets {
		c.manifest[p] = struct{}{}
	}
	if origin, err := url.Parse(cfg.Origin); err == nil {
		c.originHost = strings.ToLower(origin.Hostname())
	}
	return c
}

// Classify returns the route for req. The first matching rule wins.
func (c *Classifier) Classify(req *http.Request) Route {
	if req.Method != http.MethodGet {
		return Route{Strategy: StrategyBypass, Rule: RuleMethod}
	}

	u := req.URL
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Route{Strategy: StrategyBypass, Rule: RuleScheme}
	}

	host := strings.ToLower(u.Hostname())

	// Манифест относится только к origin, если он задан
	if _, ok := c.manifest[pathOf(u)]; ok && (c.originHost == "" || host == c.originHost) {
		return Route{Strategy: StrategyCacheFirst, Bucket: c.static, Rule: RuleManifest}
	}

	if matchHost(host, c.staticHosts) {
		return Route{Strategy: StrategyCacheFirst, Bucket: c.static, Rule: RuleStatic}
	}

	if matchHost(host, c.geocodeHosts) {
		return Route{Strategy: StrategyNetworkFirst, Bucket: c.dynamic, Rule: RuleGeocode}
	}

	return Route{Strategy: StrategyNetworkFirst, Bucket: c.dynamic, Rule: RuleDefault}
}

func pathOf(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}

// matchHost reports whether host equals one of hosts or is a subdomain of it
func matchHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			h = host
		}
		out = append(out, h)
	}
	return out
}

// RequestIdentity returns the cache key of req: the method and the URL without
// its fragment. An empty path is the same resource as "/".
func RequestIdentity(req *http.Request) string {
	u := *req.URL
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Opaque == "" && u.Host != "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return req.Method + " " + u.String()
}
