// Package ingest runs the discovery pipeline: selected source adapters
// scrape candidates, each candidate is normalized and scored, and the
// survivors land in the staging area for review.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/normalize"
	"github.com/ummahlocal/scout-cli/internal/scraper"
	"github.com/ummahlocal/scout-cli/internal/signals"
	"github.com/ummahlocal/scout-cli/internal/staging"
)

// Orchestrator wires the registry, the normalizer, and the staging engine
// into one run loop.
type Orchestrator struct {
	registry   *scraper.Registry
	normalizer *normalize.Normalizer
	engine     *staging.Engine
	out        io.Writer
}

// NewOrchestrator creates an Orchestrator. engine may be nil for pure
// dry runs.
func NewOrchestrator(reg *scraper.Registry, n *normalize.Normalizer, engine *staging.Engine) *Orchestrator {
	return &Orchestrator{
		registry:   reg,
		normalizer: n,
		engine:     engine,
		out:        os.Stdout,
	}
}

// SetOutput redirects dry-run printing. Tests use this.
func (o *Orchestrator) SetOutput(w io.Writer) { o.out = w }

// Run executes one discovery run. Configuration problems (bad flag values,
// unknown source names) fail here before any scraping starts; anything
// that goes wrong after that is isolated per source and reported in the
// returned RunStats.
func (o *Orchestrator) Run(ctx context.Context, cfg scraper.RunConfig) (*RunStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapters, dropped, err := o.registry.Select(cfg.Sources, cfg.State)
	if err != nil {
		return nil, err
	}
	if !cfg.DryRun && o.engine == nil {
		return nil, eris.New("ingest: no staging engine configured")
	}

	log := zap.L().With(zap.String("component", "ingest.orchestrator"))
	stats := newRunStats()

	for _, src := range dropped {
		stats.addSkipped(src, fmt.Sprintf("state filter %q not supported", cfg.State))
		log.Warn("source skipped, state filtering not supported",
			zap.String("source", src.String()), zap.String("state", cfg.State))
	}

	if len(adapters) == 0 {
		log.Warn("no sources selected after filtering")
		return stats, nil
	}
	for _, a := range adapters {
		stats.setStatus(a.Name(), SourcePending)
	}
	log.Info("starting run",
		zap.Int("sources", len(adapters)),
		zap.String("region", cfg.Region),
		zap.Bool("dry_run", cfg.DryRun),
	)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, a := range adapters {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			src := a.Name()
			sLog := log.With(zap.String("source", src.String()))
			stats.setStatus(src, SourceRunning)
			sLog.Info("scraping source", zap.String("kind", string(a.Kind())))

			start := time.Now()
			err := a.Scrape(gctx, cfg, func(c scraper.RawCandidate) error {
				return o.process(gctx, cfg, stats, c)
			})
			elapsed := time.Since(start)

			switch {
			case err == nil:
				stats.setStatus(src, SourceCompleted)
				sLog.Info("source complete", zap.Duration("elapsed", elapsed))
			case scraper.IsRobotsDisallowed(err):
				stats.addSkipped(src, err.Error())
				sLog.Warn("source disallowed by robots.txt, skipping")
			case gctx.Err() != nil:
				stats.setStatus(src, SourceFailed)
				return gctx.Err()
			default:
				// Partial results emitted before the failure are kept;
				// sibling sources keep running.
				stats.setStatus(src, SourceFailed)
				stats.addError(src, err.Error())
				sLog.Error("source failed", zap.Error(err), zap.Duration("elapsed", elapsed))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	log.Info("run finished",
		zap.Int("attempted", stats.Attempted),
		zap.Int("staged", stats.Staged),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errored", stats.Errored),
	)
	return stats, nil
}

// process takes one raw candidate through normalize, analyze, and stage.
// Candidate-level problems never abort the source; only a store failure
// does.
func (o *Orchestrator) process(ctx context.Context, cfg scraper.RunConfig, stats *RunStats, c scraper.RawCandidate) error {
	stats.addAttempted()

	norm := o.normalizer.Normalize(ctx, normalize.Input{
		RawAddress: c.RawAddress,
		Phone:      c.Phone,
		Website:    c.Website,
	})

	est := buildEstablishment(c, norm)

	if cfg.DryRun {
		o.printDryRun(&est)
		return nil
	}

	_, err := o.engine.Stage(ctx, est)
	if err != nil {
		if staging.IsDuplicate(err) {
			stats.addDuplicate()
			zap.L().Debug("duplicate candidate dropped",
				zap.String("name", est.Name),
				zap.String("source", est.Source.String()),
				zap.String("match", err.Error()),
			)
			return nil
		}
		return eris.Wrapf(err, "ingest: stage %q", est.Name)
	}

	stats.addStaged()
	return nil
}

// buildEstablishment assembles the immutable candidate record from the raw
// scrape and the normalization result.
func buildEstablishment(c scraper.RawCandidate, norm normalize.Normalized) model.ScrapedEstablishment {
	analysisText := strings.Join([]string{
		c.Name, c.Description, c.Category, strings.Join(c.Services, " "),
	}, " ")
	analysis := signals.Analyze(analysisText)

	category := c.Category
	if category == "" {
		category = signals.InferCategory(analysisText)
	}
	services := c.Services
	if len(services) == 0 {
		services = signals.InferServices(analysisText)
	}

	flags := norm.Flags
	if norm.Phone == "" && norm.Website == "" {
		flags = append(flags, model.FlagMissingContact)
	}

	return model.ScrapedEstablishment{
		Name:        strings.TrimSpace(c.Name),
		RawAddress:  c.RawAddress,
		Street:      norm.Street,
		City:        norm.City,
		State:       norm.State,
		ZipCode:     norm.ZipCode,
		Coordinates: norm.Coordinates,
		Phone:       norm.Phone,
		Website:     norm.Website,
		Email:       c.Email,
		Description: c.Description,
		Category:    category,
		Services:    services,
		Source:      c.Source,
		SourceURL:   c.SourceURL,
		Signals:     analysis.Signals,
		Confidence:  analysis.Score,
		Flags:       flags,
	}
}

func (o *Orchestrator) printDryRun(est *model.ScrapedEstablishment) {
	location := est.City
	if est.State != "" {
		location += ", " + est.State
	}
	fmt.Fprintf(o.out, "[dry-run] %-35s %-25s score=%-3d signals=%s flags=%s source=%s\n",
		est.Name, location, est.Confidence,
		strings.Join(est.Signals, ","), strings.Join(est.Flags, ","), est.Source)
}
