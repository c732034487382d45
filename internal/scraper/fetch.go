package scraper

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/resilience"
)

// Fetcher is the shared HTTP helper for static adapters: one rate limiter
// per source run, retry with backoff on transient failures, block
// detection, and goquery parsing.
type Fetcher struct {
	source  model.Source
	hc      *http.Client
	limiter *rate.Limiter
	ua      string
	retry   resilience.RetryConfig
}

// NewFetcher builds a Fetcher from the run config. The rate limiter
// enforces the hard minimum inter-request spacing: burst 1, one token per
// RateInterval.
func NewFetcher(source model.Source, cfg RunConfig) *Fetcher {
	interval := cfg.RateInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}
	retry.OnRetry = resilience.RetryLogger(source.String(), "fetch")

	return &Fetcher{
		source:  source,
		hc:      &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		ua:      cfg.UserAgent,
		retry:   retry,
	}
}

// Get fetches a URL honoring the rate limit and retry policy. A blocked
// page or non-OK status that is not transient comes back as a structural
// error for this source.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	return resilience.DoVal(ctx, f.retry, func(ctx context.Context) ([]byte, error) {
		// Waiting inside the retry loop keeps the minimum spacing between
		// attempts too. Backoff alone can fire sooner than the interval.
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "scraper: %s: rate limit wait", f.source)
		}
		return f.getOnce(ctx, url)
	})
}

func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: %s: build request", f.source)
	}
	if f.ua != "" {
		req.Header.Set("User-Agent", f.ua)
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: %s: request %s", f.source, url)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: %s: read body", f.source)
	}

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, NewStructuralError(f.source, "blocked by anti-bot protection (%s)", bt)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := eris.Errorf("scraper: %s: %s returned status %d", f.source, url, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	return body, nil
}

// Document fetches a URL and parses it into a goquery document.
func (f *Fetcher) Document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "scraper: %s: parse html", f.source)
	}
	return doc, nil
}

// CheckRobots fetches and evaluates robots.txt for the given site root. A
// fetch failure is treated as allowed: a missing robots.txt must not skip
// the source.
func (f *Fetcher) CheckRobots(ctx context.Context, baseURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	if f.ua != "" {
		req.Header.Set("User-Agent", f.ua)
	}

	resp, err := f.hc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil
	}

	rules := ParseRobots(string(body), f.ua)
	if !rules.Allowed(path) {
		return &RobotsDisallowedError{Source: f.source}
	}
	return nil
}
