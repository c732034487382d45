package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/rotisserie/eris"

	"github.com/ummahlocal/scout-cli/internal/browser"
	"github.com/ummahlocal/scout-cli/internal/model"
)

// GmapsScraper searches the maps web UI for halal businesses near a
// region. Results are geolocation-biased toward the searched area, so the
// region string must carry the city (and state when set) explicitly.
type GmapsScraper struct {
	pool    *browser.Pool
	baseURL string
}

// NewGmapsScraper creates the adapter backed by the shared browser pool.
func NewGmapsScraper(pool *browser.Pool) *GmapsScraper {
	return &GmapsScraper{pool: pool, baseURL: "https://www.google.com/maps"}
}

func (g *GmapsScraper) Name() model.Source { return model.SourceGoogleMaps }
func (g *GmapsScraper) Kind() Kind         { return KindBrowser }

// SupportsState is always true: state goes into the search query.
func (g *GmapsScraper) SupportsState(string) bool { return true }

// Scrape runs a "halal near <region>" search and walks the result feed,
// scrolling until MaxResults or the feed stops growing.
func (g *GmapsScraper) Scrape(ctx context.Context, cfg RunConfig, emit EmitFunc) error {
	if g.pool == nil {
		return eris.Errorf("scraper: %s: browser pool not configured", g.Name())
	}

	area := cfg.Region
	if cfg.State != "" {
		area = area + ", " + strings.ToUpper(cfg.State)
	}
	searchURL := g.baseURL + "/search/" + url.PathEscape("halal near "+area)

	page, release, err := g.pool.Acquire(ctx)
	if err != nil {
		return eris.Wrapf(err, "scraper: %s: acquire browser context", g.Name())
	}
	defer release()

	timeout := g.pool.NavigationTimeout()
	limiter := newPageLimiter(cfg)

	if err := navigate(page, searchURL, timeout); err != nil {
		return wrapBrowserErr(g.Name(), "navigate search", err)
	}

	feed, err := page.Timeout(timeout).Element(`div[role="feed"]`)
	if err != nil {
		return wrapBrowserErr(g.Name(), "find result feed", err)
	}

	emitted := 0
	seen := map[string]bool{}
	prevCount := -1
	for {
		cards, err := feed.Timeout(timeout).Elements(`div[role="article"]`)
		if err != nil {
			return wrapBrowserErr(g.Name(), "find result cards", err)
		}
		if len(cards) == 0 && emitted == 0 {
			return NewStructuralError(g.Name(), "no result cards at %s", searchURL)
		}

		for _, card := range cards {
			if cfg.MaxResults > 0 && emitted >= cfg.MaxResults {
				return nil
			}

			c, key := g.parseCard(card)
			if c.Name == "" || seen[key] {
				continue
			}
			seen[key] = true
			c.SourceURL = searchURL

			if err := emit(c); err != nil {
				return err
			}
			emitted++
		}

		// The feed stops growing at the end of results.
		if len(cards) == prevCount {
			return nil
		}
		prevCount = len(cards)

		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "scraper: %s: rate limit wait", g.Name())
		}
		if _, err := feed.Timeout(timeout).Eval(`() => this.scrollTo(0, this.scrollHeight)`); err != nil {
			return wrapBrowserErr(g.Name(), "scroll feed", err)
		}
	}
}

// parseCard pulls name, address, category, and phone from an article card.
// The card's aria-label carries the business name; the detail rows are
// dot-separated text spans.
func (g *GmapsScraper) parseCard(card *rod.Element) (RawCandidate, string) {
	c := RawCandidate{Source: g.Name()}

	if label, err := card.Attribute("aria-label"); err == nil && label != nil {
		c.Name = strings.TrimSpace(*label)
	}
	if c.Name == "" {
		return c, ""
	}

	rows, err := card.Elements(`div.fontBodyMedium > div`)
	if err != nil {
		return c, c.Name
	}
	for _, row := range rows {
		text, terr := row.Text()
		if terr != nil {
			continue
		}
		for _, part := range strings.Split(text, "·") {
			part = strings.TrimSpace(part)
			switch {
			case part == "":
			case looksLikePhone(part):
				c.Phone = part
			case looksLikeStreet(part):
				c.RawAddress = part
			case c.Category == "" && !strings.ContainsAny(part, "0123456789"):
				c.Category = part
			}
		}
	}

	return c, c.Name + "|" + c.RawAddress
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

// looksLikeStreet accepts strings starting with a street number.
func looksLikeStreet(s string) bool {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i > 0 && i < len(s) && s[i] == ' '
}
