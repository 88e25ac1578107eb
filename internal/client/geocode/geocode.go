// Package geocode resolves coordinates to a human-readable place name through a
// Nominatim-compatible reverse-geocoding service.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrGeocodeUnresolvable is returned when the service answered without a usable address
var ErrGeocodeUnresolvable = errors.New("geocode: no usable address")

// DefaultBaseURL is the public Nominatim endpoint
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// settlementFields проверяются по порядку, берется первое непустое
var settlementFields = []string{
	"address.city",
	"address.town",
	"address.village",
	"address.hamlet",
}

// Geocoder performs reverse-geocoding lookups
type Geocoder struct {
	client    *http.Client
	logger    *slog.Logger
	baseURL   string
	userAgent string
	timeout   time.Duration
}

// NewGeocoder creates a geocoder. Requests go through client, so a client whose
// Transport is the offline worker gets network-first caching of lookups.
// timeout bounds a single lookup; zero means no limit beyond ctx.
func NewGeocoder(client *http.Client, baseURL, userAgent string, timeout time.Duration, logger *slog.Logger) *Geocoder {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Geocoder{
		client:    client,
		logger:    logger,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Reverse returns the place name for the coordinates
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	query := url.Values{}
	query.Set("format", "json")
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("zoom", "10")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("reverse geocode failed with status %d", resp.StatusCode)
	}

	return ExtractName(body)
}

// LocationName is Reverse with every failure swallowed: it returns "" so the
// caller falls back to raw coordinates.
func (g *Geocoder) LocationName(ctx context.Context, lat, lon float64) string {
	name, err := g.Reverse(ctx, lat, lon)
	if err != nil {
		g.logger.Debug("reverse geocode failed", "lat", lat, "lon", lon, "error", err)
		return ""
	}
	return name
}

// ExtractName builds the place name from a reverse-geocoding response: the first
// settlement field, then state and country, joined with ", ". When none is
// present display_name is used.
func ExtractName(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("%w: invalid JSON", ErrGeocodeUnresolvable)
	}

	result := gjson.ParseBytes(body)
	if errMsg := result.Get("error"); errMsg.Exists() {
		return "", fmt.Errorf("%w: %s", ErrGeocodeUnresolvable, errMsg.String())
	}

	parts := make([]string, 0, 3)
	for _, field := range settlementFields {
		if v := strings.TrimSpace(result.Get(field).String()); v != "" {
			parts = append(parts, v)
			break
		}
	}
	for _, field := range []string{"address.state", "address.country"} {
		if v := strings.TrimSpace(result.Get(field).String()); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", "), nil
	}

	if name := strings.TrimSpace(result.Get("display_name").String()); name != "" {
		return name, nil
	}
	return "", ErrGeocodeUnresolvable
}
