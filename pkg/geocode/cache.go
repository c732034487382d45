package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/db"
)

const cacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality      TEXT NOT NULL DEFAULT '',
	matched      BOOLEAN NOT NULL,
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// MigrateCache creates the cache table. Callers run it once before
// enabling WithCache on a fresh database.
func MigrateCache(ctx context.Context, pool db.Pool) error {
	_, err := pool.Exec(ctx, cacheMigration)
	return eris.Wrap(err, "geocode: migrate cache")
}

// cacheKey returns SHA-256 hex of the normalized address for cache lookup.
func cacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(addr.Street)),
		strings.ToLower(strings.TrimSpace(addr.City)),
		strings.ToLower(strings.TrimSpace(addr.State)),
		strings.TrimSpace(addr.ZipCode),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

// checkCache looks up a cached geocode result, respecting TTL if configured.
// Cached non-matches (Matched=false) are returned too, so a known-bad
// address does not hit the provider on every run.
func (g *geocoder) checkCache(ctx context.Context, key string) (*Result, error) {
	query := "SELECT latitude, longitude, quality, matched FROM geocode_cache WHERE address_hash = $1"
	if g.cacheTTLDays > 0 {
		query += fmt.Sprintf(" AND cached_at > now() - interval '%d days'", g.cacheTTLDays)
	}

	var lat, lon float64
	var quality string
	var matched bool
	row := g.pool.QueryRow(ctx, query, key)
	if err := row.Scan(&lat, &lon, &quality, &matched); err != nil {
		return nil, err // no row or scan error; caller falls through to the provider
	}

	keyPrefix := key
	if len(keyPrefix) > 12 {
		keyPrefix = keyPrefix[:12]
	}
	zap.L().Debug("geocode cache hit", zap.String("key", keyPrefix), zap.Bool("matched", matched))

	return &Result{
		Latitude:  lat,
		Longitude: lon,
		Source:    "cache",
		Quality:   quality,
		Matched:   matched,
	}, nil
}

// storeCache inserts a geocode result (match or non-match) into the cache.
func (g *geocoder) storeCache(ctx context.Context, key string, result *Result) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO geocode_cache (address_hash, latitude, longitude, quality, matched, cached_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			quality = EXCLUDED.quality,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		key, result.Latitude, result.Longitude, result.Quality, result.Matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}
