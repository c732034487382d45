package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahlocal/scout-cli/internal/model"
)

const halalJointsJSONLD = `<html><head>
<script type="application/ld+json">
{"@type":"Restaurant","name":"Saffron House","description":"Family owned, fully halal menu.",
 "telephone":"(713) 555-0199","url":"https://saffronhouse.example.com",
 "address":{"streetAddress":"800 Westheimer Rd","addressLocality":"Houston","addressRegion":"TX","postalCode":"77006"},
 "servesCuisine":"Pakistani"}
</script>
<script type="application/ld+json">
{"@type":"WebSite","name":"Halal Joints"}
</script>
</head><body></body></html>`

func TestHalalJointsScraper_ParsesJSONLD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/city/houston", r.URL.Path)
		_, _ = w.Write([]byte(halalJointsJSONLD))
	}))
	defer srv.Close()

	h := &HalalJointsScraper{BaseURL: srv.URL}
	cfg := testRunConfig()
	cfg.Region = "Houston"
	cfg.RespectRobots = false

	var got []RawCandidate
	err := h.Scrape(context.Background(), cfg, func(c RawCandidate) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, "Saffron House", c.Name)
	assert.Equal(t, "800 Westheimer Rd, Houston, TX 77006", c.RawAddress)
	assert.Equal(t, "(713) 555-0199", c.Phone)
	assert.Equal(t, "https://saffronhouse.example.com", c.Website)
	assert.Equal(t, "Pakistani", c.Category)
	assert.Equal(t, model.SourceHalalJoints, c.Source)
}

func TestHalalJointsScraper_CardFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<div class="joint-card">
  <h3 class="joint-name">Medina Market</h3>
  <p class="joint-address">12 Elm St, Houston, TX 77002</p>
  <p class="joint-phone">(713) 555-0100</p>
  <a class="joint-link" href="https://medinamarket.example.com">site</a>
</div>
</body></html>`))
	}))
	defer srv.Close()

	h := &HalalJointsScraper{BaseURL: srv.URL}
	cfg := testRunConfig()
	cfg.Region = "Houston"
	cfg.RespectRobots = false

	var got []RawCandidate
	err := h.Scrape(context.Background(), cfg, func(c RawCandidate) error {
		got = append(got, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Medina Market", got[0].Name)
	assert.Equal(t, "https://medinamarket.example.com", got[0].Website)
}

func TestHalalJointsScraper_EmptyPageIsStructural(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Nothing here that we recognize, just filler text long enough to not look like a shell page.</p></body></html>`))
	}))
	defer srv.Close()

	h := &HalalJointsScraper{BaseURL: srv.URL}
	cfg := testRunConfig()
	cfg.Region = "Houston"
	cfg.RespectRobots = false

	err := h.Scrape(context.Background(), cfg, func(RawCandidate) error { return nil })
	require.Error(t, err)
	assert.True(t, IsStructural(err))
}

func TestHalalJointsScraper_NoStateSupport(t *testing.T) {
	h := NewHalalJointsScraper()
	assert.False(t, h.SupportsState("TX"))
}
