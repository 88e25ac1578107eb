// Package offline implements the interception cache layer: every outgoing GET is
// classified and served cache-first or network-first from versioned buckets,
// degrading to a synthesized 503 when neither the network nor the cache can answer.
package offline

import (
	"fmt"
	"time"
)

// Config describes the buckets and the classification tables of the worker
type Config struct {
	// Origin is the base URL the static manifest is fetched against
	Origin string
	// CachePrefix and Version form the bucket names
	CachePrefix string
	Version     string
	// StaticAssets is the manifest of shell paths populated at install
	StaticAssets []string
	// StaticHosts are CDN and tile hosts served cache-first
	StaticHosts []string
	// GeocodeHosts are reverse-geocoding hosts served network-first
	GeocodeHosts []string
	// InstallRetries is the number of attempts per manifest path
	InstallRetries uint
	// InstallRetryInterval is the initial backoff interval between attempts
	InstallRetryInterval time.Duration
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() Config {
	return Config{
		Origin:      "http://localhost:8080",
		CachePrefix: "geojournal",
		Version:     "v1",
		StaticAssets: []string{
			"/",
			"/index.html",
			"/css/styles.css",
			"/js/app.js",
			"/manifest.json",
		},
		StaticHosts: []string{
			"unpkg.com",
			"cdn.jsdelivr.net",
			"tile.openstreetmap.org",
		},
		GeocodeHosts:         []string{"nominatim.openstreetmap.org"},
		InstallRetries:       3,
		InstallRetryInterval: 500 * time.Millisecond,
	}
}

// StaticBucket returns the name of the current static bucket
func (c Config) StaticBucket() string {
	return fmt.Sprintf("%s-static-%s", c.CachePrefix, c.Version)
}

// DynamicBucket returns the name of the current dynamic bucket
func (c Config) DynamicBucket() string {
	return fmt.Sprintf("%s-dynamic-%s", c.CachePrefix, c.Version)
}

// IsCurrentBucket reports whether name is one of the two current buckets
func (c Config) IsCurrentBucket(name string) bool {
	return name == c.StaticBucket() || name == c.DynamicBucket()
}

// Phase is the lifecycle state of the worker
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInstalling
	PhaseInstalled
	PhaseActivating
	PhaseActive
	// PhaseRedundant - установка не удалась, воркер не активируется
	PhaseRedundant
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInstalling:
		return "installing"
	case PhaseInstalled:
		return "installed"
	case PhaseActivating:
		return "activating"
	case PhaseActive:
		return "active"
	case PhaseRedundant:
		return "redundant"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Strategy is the way a classified request is served
type Strategy int

const (
	// StrategyBypass - запрос проходит мимо кэша без изменений
	StrategyBypass Strategy = iota
	StrategyCacheFirst
	StrategyNetworkFirst
)

func (s Strategy) String() string {
	switch s {
	case StrategyBypass:
		return "bypass"
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkFirst:
		return "network-first"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}
