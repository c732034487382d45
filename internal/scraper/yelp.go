package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ummahlocal/scout-cli/internal/browser"
	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/resilience"
)

// YelpScraper drives a headless browser over yelp search results. The list
// is JS-rendered and lazy-loaded, so each page must be scrolled before the
// cards exist in the DOM.
type YelpScraper struct {
	pool    *browser.Pool
	baseURL string
}

// NewYelpScraper creates the adapter backed by the shared browser pool.
func NewYelpScraper(pool *browser.Pool) *YelpScraper {
	return &YelpScraper{pool: pool, baseURL: "https://www.yelp.com"}
}

func (y *YelpScraper) Name() model.Source { return model.SourceYelp }
func (y *YelpScraper) Kind() Kind         { return KindBrowser }

// SupportsState is always true: the location query carries the state.
func (y *YelpScraper) SupportsState(string) bool { return true }

// Scrape searches for halal businesses in cfg.Region, scrolling the result
// list until MaxResults or the end.
func (y *YelpScraper) Scrape(ctx context.Context, cfg RunConfig, emit EmitFunc) error {
	if y.pool == nil {
		return eris.Errorf("scraper: %s: browser pool not configured", y.Name())
	}

	location := cfg.Region
	if cfg.State != "" {
		location = location + ", " + strings.ToUpper(cfg.State)
	}
	searchURL := y.baseURL + "/search?find_desc=" + url.QueryEscape("halal") +
		"&find_loc=" + url.QueryEscape(location)

	page, release, err := y.pool.Acquire(ctx)
	if err != nil {
		return eris.Wrapf(err, "scraper: %s: acquire browser context", y.Name())
	}
	defer release()

	timeout := y.pool.NavigationTimeout()
	limiter := newPageLimiter(cfg)

	if err := navigate(page, searchURL, timeout); err != nil {
		return wrapBrowserErr(y.Name(), "navigate search", err)
	}

	emitted := 0
	seen := map[string]bool{}
	for {
		if err := scrollToBottom(page, timeout); err != nil {
			return wrapBrowserErr(y.Name(), "scroll results", err)
		}

		cards, err := page.Timeout(timeout).Elements(`div[data-testid="serp-ia-card"]`)
		if err != nil {
			return wrapBrowserErr(y.Name(), "find result cards", err)
		}
		if len(cards) == 0 && emitted == 0 {
			return NewStructuralError(y.Name(), "no result cards at %s", searchURL)
		}

		for _, card := range cards {
			if cfg.MaxResults > 0 && emitted >= cfg.MaxResults {
				return nil
			}

			c, key, perr := y.parseCard(card)
			if perr != nil || c.Name == "" || seen[key] {
				continue
			}
			seen[key] = true
			c.SourceURL = searchURL

			if err := emit(c); err != nil {
				return err
			}
			emitted++
		}

		next, err := page.Timeout(timeout).Element(`a[aria-label="Next"]`)
		if err != nil || next == nil {
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "scraper: %s: rate limit wait", y.Name())
		}
		if err := next.Timeout(timeout).Click("left", 1); err != nil {
			return nil
		}
		if err := page.Timeout(timeout).WaitLoad(); err != nil {
			return wrapBrowserErr(y.Name(), "wait next page", err)
		}
	}
}

func (y *YelpScraper) parseCard(card *rod.Element) (RawCandidate, string, error) {
	c := RawCandidate{Source: y.Name()}

	nameEl, err := card.Element(`a[data-testid="business-link"]`)
	if err != nil {
		return c, "", err
	}
	c.Name, err = nameEl.Text()
	if err != nil {
		return c, "", err
	}
	c.Name = strings.TrimSpace(c.Name)

	if href, aerr := nameEl.Attribute("href"); aerr == nil && href != nil {
		if strings.HasPrefix(*href, "/") {
			c.Website = y.baseURL + *href
		} else {
			c.Website = *href
		}
	}

	if addrEl, aerr := card.Element(`span[data-testid="address"]`); aerr == nil {
		if t, terr := addrEl.Text(); terr == nil {
			c.RawAddress = strings.TrimSpace(t)
		}
	}
	if catEl, cerr := card.Element(`span[data-testid="category-link"]`); cerr == nil {
		if t, terr := catEl.Text(); terr == nil {
			c.Category = strings.TrimSpace(t)
		}
	}
	if snipEl, serr := card.Element(`p[data-testid="snippet"]`); serr == nil {
		if t, terr := snipEl.Text(); terr == nil {
			c.Description = strings.TrimSpace(t)
		}
	}

	return c, c.Name + "|" + c.RawAddress, nil
}

// navigate loads a URL and waits for the page to settle.
func navigate(page *rod.Page, target string, timeout time.Duration) error {
	p := page.Timeout(timeout)
	if err := p.Navigate(target); err != nil {
		return err
	}
	return p.WaitLoad()
}

// scrollToBottom forces lazy-loaded list items into the DOM.
func scrollToBottom(page *rod.Page, timeout time.Duration) error {
	_, err := page.Timeout(timeout).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		return err
	}
	// Give lazy loaders a beat to fire.
	time.Sleep(500 * time.Millisecond)
	return nil
}

// wrapBrowserErr classifies a browser failure: timeouts are transient and
// retried by the orchestrator, anything else on a loaded page means the
// markup drifted.
func wrapBrowserErr(source model.Source, op string, err error) error {
	if err == nil {
		return nil
	}
	if resilience.IsTransient(err) {
		return resilience.NewTransientError(
			eris.Wrapf(err, "scraper: %s: %s", source, op), 0)
	}
	return NewStructuralError(source, "%s: %v", op, err)
}

// newPageLimiter spaces page-level navigations the same way the static
// family spaces HTTP requests.
func newPageLimiter(cfg RunConfig) *rate.Limiter {
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
