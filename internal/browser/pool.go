// Package browser manages the shared headless Chrome instance used by the
// browser-based source adapters. The browser process is launched lazily and
// shared; isolation happens at the incognito-context level, one context per
// adapter invocation, released even on error or cancellation.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Config controls the shared browser instance.
type Config struct {
	Headless          bool
	NavigationTimeout time.Duration
	// MaxContexts bounds how many adapter invocations may hold a browser
	// context at once. Default: 2.
	MaxContexts int
}

// DefaultConfig returns the defaults used by the scrape command.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		MaxContexts:       2,
	}
}

// Pool owns the Chrome process and hands out isolated page contexts.
type Pool struct {
	cfg Config

	mu       sync.Mutex
	browser  *rod.Browser
	launched bool
	sem      chan struct{}
}

// NewPool creates a Pool. Chrome is not launched until the first Acquire,
// so static-only runs never spawn a browser process.
func NewPool(cfg Config) *Pool {
	if cfg.MaxContexts <= 0 {
		cfg.MaxContexts = 2
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Pool{
		cfg: cfg,
		sem: make(chan struct{}, cfg.MaxContexts),
	}
}

// NavigationTimeout returns the configured per-navigation timeout.
func (p *Pool) NavigationTimeout() time.Duration {
	return p.cfg.NavigationTimeout
}

// Acquire returns a fresh page in its own incognito context, plus a release
// function that must be called when the adapter is done with it. Acquire
// blocks while MaxContexts pages are outstanding.
func (p *Pool) Acquire(ctx context.Context) (*rod.Page, func(), error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, eris.Wrap(ctx.Err(), "browser: acquire cancelled")
	}

	b, err := p.ensureBrowser()
	if err != nil {
		<-p.sem
		return nil, nil, err
	}

	incognito, err := b.Incognito()
	if err != nil {
		<-p.sem
		return nil, nil, eris.Wrap(err, "browser: create incognito context")
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		<-p.sem
		return nil, nil, eris.Wrap(err, "browser: open page")
	}
	page = page.Context(ctx)

	var once sync.Once
	release := func() {
		once.Do(func() {
			if err := page.Close(); err != nil {
				zap.L().Debug("browser: page close failed", zap.Error(err))
			}
			<-p.sem
		})
	}
	return page, release, nil
}

// ensureBrowser launches Chrome on first use.
func (p *Pool) ensureBrowser() (*rod.Browser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.launched {
		return p.browser, nil
	}

	controlURL, err := launcher.New().Headless(p.cfg.Headless).Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, eris.Wrap(err, "browser: connect devtools")
	}

	zap.L().Info("browser launched", zap.Bool("headless", p.cfg.Headless))
	p.browser = b
	p.launched = true
	return b, nil
}

// Close shuts the browser down and releases its process. Safe to call when
// the browser was never launched.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.launched {
		return nil
	}
	p.launched = false

	if err := p.browser.Close(); err != nil {
		return eris.Wrap(err, "browser: close")
	}
	return nil
}
