// Package scraper defines the source adapter contract and its
// implementations: static HTML adapters built on goquery and
// headless-browser adapters built on rod.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// Kind distinguishes the two adapter families.
type Kind string

const (
	// KindStatic adapters fetch HTML over plain HTTP and parse it with
	// selectors. Cheap, but brittle to markup changes.
	KindStatic Kind = "static"
	// KindBrowser adapters drive a headless browser for JS-rendered pages.
	KindBrowser Kind = "browser"
)

// RawCandidate is one establishment as discovered on a source page, before
// normalization and scoring. Every candidate carries its provenance.
type RawCandidate struct {
	Name        string
	RawAddress  string
	Phone       string
	Website     string
	Email       string
	Description string
	Category    string
	Services    []string
	Source      model.Source
	SourceURL   string
}

// EmitFunc receives candidates in discovery order. Returning an error stops
// the adapter; adapters must propagate it unchanged.
type EmitFunc func(c RawCandidate) error

// Adapter is the contract every source implements. Scrape is restartable: a
// fresh call re-runs the whole fetch. It is not resumable mid-stream.
type Adapter interface {
	// Name returns the source identifier carried on every emitted record.
	Name() model.Source

	// Kind reports the adapter family.
	Kind() Kind

	// SupportsState reports whether the adapter can honor a two-letter
	// state filter. Adapters that cannot are skipped when one is set.
	SupportsState(state string) bool

	// Scrape fetches candidates and emits them in discovery order, honoring
	// cfg.MaxResults and the per-source rate limit.
	Scrape(ctx context.Context, cfg RunConfig, emit EmitFunc) error
}

// RunConfig is the per-run scraper configuration. Created fresh per
// invocation, validated once at run start, never persisted.
type RunConfig struct {
	Sources       []string
	Region        string
	State         string
	MaxResults    int
	DryRun        bool
	Verbose       bool
	SkipGeocoding bool
	RespectRobots bool

	RateInterval time.Duration
	Timeout      time.Duration
	UserAgent    string
	MaxRetries   int

	// Concurrency bounds how many sources run at once. The default of 1
	// keeps sources sequential so rate-limit pressure never compounds.
	Concurrency int
}

// DefaultRunConfig returns the conservative defaults.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		RateInterval:  2 * time.Second,
		Timeout:       30 * time.Second,
		UserAgent:     "scout-cli/1.0 (+https://ummahlocal.com/about/scout)",
		MaxRetries:    3,
		Concurrency:   1,
		RespectRobots: true,
	}
}

// Validate checks the config once at run start. A validation failure here
// is a configuration error: fatal before any scraping begins.
func (c *RunConfig) Validate() error {
	if c.State != "" && len(c.State) != 2 {
		return eris.Errorf("scraper: state must be a 2-letter code, got %q", c.State)
	}
	if c.MaxResults < 0 {
		return eris.New("scraper: max results must be >= 0")
	}
	if c.Concurrency < 0 {
		return eris.New("scraper: concurrency must be >= 0")
	}
	if c.RateInterval < 0 {
		return eris.New("scraper: rate interval must be >= 0")
	}
	return nil
}

// StructuralError means the source's markup no longer matches what the
// adapter expects: fatal for that source, partial results are kept, and
// sibling sources continue.
type StructuralError struct {
	Source model.Source
	Reason string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("scraper: %s: structural: %s", e.Source, e.Reason)
}

// NewStructuralError reports a site-drift failure for a source.
func NewStructuralError(source model.Source, format string, args ...any) error {
	return &StructuralError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// IsStructural reports whether err is a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// RobotsDisallowedError means robots.txt forbids scraping the source. The
// source is skipped entirely and the skip is recorded, not thrown.
type RobotsDisallowedError struct {
	Source model.Source
}

func (e *RobotsDisallowedError) Error() string {
	return fmt.Sprintf("scraper: %s: disallowed by robots.txt", e.Source)
}

// IsRobotsDisallowed reports whether err is a RobotsDisallowedError.
func IsRobotsDisallowed(err error) bool {
	var re *RobotsDisallowedError
	return errors.As(err, &re)
}
