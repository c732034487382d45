package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahlocal/scout-cli/internal/resilience"
)

const censusMatchBody = `{"result":{"addressMatches":[{
	"coordinates":{"x":-83.1763,"y":42.3223},
	"matchedAddress":"13041 W WARREN AVE, DEARBORN, MI, 48126"
}]}}`

func TestGeocode_CensusMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("address"), "Dearborn")
		_, _ = w.Write([]byte(censusMatchBody))
	}))
	defer srv.Close()

	g := NewClient(WithBaseURL(srv.URL))
	result, err := g.Geocode(context.Background(), AddressInput{
		Street: "13041 W Warren Ave", City: "Dearborn", State: "MI", ZipCode: "48126",
	})

	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.InDelta(t, 42.3223, result.Latitude, 0.001)
	assert.InDelta(t, -83.1763, result.Longitude, 0.001)
	assert.Equal(t, "census", result.Source)
	assert.Equal(t, "rooftop", result.Quality)
}

func TestGeocode_NoMatchIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result":{"addressMatches":[]}}`))
	}))
	defer srv.Close()

	g := NewClient(WithBaseURL(srv.URL))
	result, err := g.Geocode(context.Background(), AddressInput{Street: "nowhere"})

	require.NoError(t, err)
	assert.False(t, result.Matched)
}

func TestGeocode_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewClient(WithBaseURL(srv.URL))
	_, err := g.Geocode(context.Background(), AddressInput{Street: "x"})

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGeocode_BadRequestIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewClient(WithBaseURL(srv.URL))
	_, err := g.Geocode(context.Background(), AddressInput{Street: "x"})

	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestCacheKey_Deterministic(t *testing.T) {
	addr := AddressInput{Street: "100 Main St", City: "Dearborn", State: "MI", ZipCode: "48126"}
	assert.Equal(t, cacheKey(addr), cacheKey(addr))
	assert.Len(t, cacheKey(addr), 64)
}

func TestCacheKey_CaseInsensitive(t *testing.T) {
	a := AddressInput{Street: "100 Main St", City: "Dearborn", State: "MI", ZipCode: "48126"}
	b := AddressInput{Street: "100 MAIN ST", City: "DEARBORN", State: "mi", ZipCode: "48126"}
	assert.Equal(t, cacheKey(a), cacheKey(b))
}

func TestMigrateCache(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geocode_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, MigrateCache(context.Background(), mock))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeocode_CacheHitSkipsProvider(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT latitude, longitude, quality, matched FROM geocode_cache`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(
			pgxmock.NewRows([]string{"latitude", "longitude", "quality", "matched"}).
				AddRow(42.32, -83.17, "rooftop", true),
		)

	// No HTTP server: a provider call would fail the test.
	g := NewClient(WithBaseURL("http://127.0.0.1:0"), WithCache(mock, 0))
	result, err := g.Geocode(context.Background(), AddressInput{
		Street: "100 Main St", City: "Dearborn", State: "MI",
	})

	require.NoError(t, err)
	assert.True(t, result.Matched)
	assert.Equal(t, "cache", result.Source)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGeocode_CacheMissStoresResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(censusMatchBody))
	}))
	defer srv.Close()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT latitude, longitude, quality, matched FROM geocode_cache`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs(pgxmock.AnyArg(), 42.3223, -83.1763, "rooftop", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	g := NewClient(WithBaseURL(srv.URL), WithCache(mock, 30))
	result, err := g.Geocode(context.Background(), AddressInput{
		Street: "13041 W Warren Ave", City: "Dearborn", State: "MI",
	})

	require.NoError(t, err)
	assert.True(t, result.Matched)
	require.NoError(t, mock.ExpectationsWereMet())
}
