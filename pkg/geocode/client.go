// Package geocode resolves street addresses to coordinates via the Census
// Geocoder, with an optional Postgres-backed result cache.
package geocode

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ummahlocal/scout-cli/internal/db"
)

// Client geocodes addresses.
type Client interface {
	// Geocode geocodes a single address. An unmatched address is not an
	// error: it returns Matched=false with zero coordinates.
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
}

// AddressInput represents an address to geocode.
type AddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Result holds the geocoding output for an address.
type Result struct {
	Latitude  float64
	Longitude float64
	Source    string // "census" or "cache"
	Quality   string // "rooftop", "approximate"
	Matched   bool
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the Census endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second limit for Census API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}

// WithCache enables the Postgres result cache. ttlDays <= 0 means entries
// never expire.
func WithCache(pool db.Pool, ttlDays int) Option {
	return func(g *geocoder) {
		g.pool = pool
		g.cacheTTLDays = ttlDays
	}
}

type geocoder struct {
	httpClient   *http.Client
	baseURL      string
	limiter      *rate.Limiter
	pool         db.Pool
	cacheTTLDays int
}

// NewClient creates a geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    censusOneLineURL,
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Geocode checks the cache, then the Census one-line API. Cache write
// failures are logged and swallowed: a broken cache must not fail the
// lookup.
func (g *geocoder) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := cacheKey(addr)

	if g.pool != nil {
		if cached, err := g.checkCache(ctx, key); err == nil {
			return cached, nil
		}
	}

	result, err := g.geocodeCensus(ctx, addr)
	if err != nil {
		return nil, err
	}

	if g.pool != nil {
		if err := g.storeCache(ctx, key, result); err != nil {
			zap.L().Warn("geocode: cache store failed", zap.Error(err))
		}
	}

	return result, nil
}
