package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/browser"
	"github.com/ummahlocal/scout-cli/internal/db"
	"github.com/ummahlocal/scout-cli/internal/ingest"
	"github.com/ummahlocal/scout-cli/internal/normalize"
	"github.com/ummahlocal/scout-cli/internal/resilience"
	"github.com/ummahlocal/scout-cli/internal/scraper"
	"github.com/ummahlocal/scout-cli/internal/staging"
	"github.com/ummahlocal/scout-cli/pkg/geocode"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Discover businesses from the configured sources",
	Long: `Scrape the selected sources for a region, normalize and score each
candidate, and stage the results for review.

Source failures are isolated: one source going down or changing its markup
does not stop the others, and partial results are kept. The exit code is
non-zero only for configuration errors.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log := zap.L().With(zap.String("command", "scrape"))

		runCfg := scrapeRunConfig(cmd)
		if err := runCfg.Validate(); err != nil {
			return err
		}

		// Browser pool is lazy: the browser only launches when a browser
		// adapter actually runs.
		pool := browser.NewPool(browser.Config{
			Headless:          cfg.Browser.Headless,
			NavigationTimeout: time.Duration(cfg.Browser.NavigationTimeoutS) * time.Second,
			MaxContexts:       cfg.Browser.MaxContexts,
		})
		defer pool.Close() //nolint:errcheck

		registry := scraper.DefaultRegistry(pool)

		var engine *staging.Engine
		if !runCfg.DryRun {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			engine = staging.NewEngine(store)
		}

		orch := ingest.NewOrchestrator(registry, buildNormalizer(ctx, runCfg), engine)

		stats, err := orch.Run(ctx, runCfg)
		if err != nil {
			return err
		}

		printSummary(cmd, stats)
		if stats.HasFailures() {
			log.Warn("run finished with source failures", zap.Int("errored", stats.Errored))
		}
		return nil
	},
}

// buildNormalizer wires the geocoding client, its retry policy, and the
// circuit breaker that guards against provider outages.
func buildNormalizer(ctx context.Context, runCfg scraper.RunConfig) *normalize.Normalizer {
	if runCfg.SkipGeocoding {
		return normalize.New(nil)
	}

	opts := []geocode.Option{
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithRateLimit(cfg.Geocode.RatePerSec),
	}
	// The geocode cache lives in Postgres; the SQLite backend runs
	// uncached.
	if cfg.Store.Driver == "postgres" {
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL)
		if err == nil {
			err = geocode.MigrateCache(ctx, pool)
		}
		if err == nil {
			opts = append(opts, geocode.WithCache(pool, cfg.Geocode.CacheTTLDays))
		} else {
			zap.L().Warn("geocode cache unavailable", zap.Error(err))
		}
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Geocode.BreakerFailures,
		ResetTimeout:     time.Duration(cfg.Geocode.BreakerCooldownS) * time.Second,
	})
	retry := resilience.FromConfig(3, 500)

	return normalize.New(geocode.NewClient(opts...),
		normalize.WithRetry(retry),
		normalize.WithBreaker(breaker),
	)
}

func scrapeRunConfig(cmd *cobra.Command) scraper.RunConfig {
	runCfg := scraper.DefaultRunConfig()
	runCfg.RateInterval = time.Duration(cfg.Scrape.RateIntervalSecs) * time.Second
	runCfg.Timeout = time.Duration(cfg.Scrape.TimeoutSecs) * time.Second
	runCfg.UserAgent = cfg.Scrape.UserAgent
	runCfg.MaxRetries = cfg.Scrape.MaxRetries
	runCfg.Concurrency = cfg.Scrape.Concurrency
	runCfg.RespectRobots = cfg.Scrape.RespectRobots

	runCfg.Sources, _ = cmd.Flags().GetStringSlice("sources")
	runCfg.Region, _ = cmd.Flags().GetString("region")
	runCfg.State, _ = cmd.Flags().GetString("state")
	runCfg.MaxResults, _ = cmd.Flags().GetInt("max")
	runCfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
	runCfg.SkipGeocoding, _ = cmd.Flags().GetBool("skip-geocoding")
	runCfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	return runCfg
}

func printSummary(cmd *cobra.Command, stats *ingest.RunStats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nattempted:  %d\n", stats.Attempted)
	fmt.Fprintf(out, "staged:     %d\n", stats.Staged)
	fmt.Fprintf(out, "duplicates: %d\n", stats.Duplicates)
	fmt.Fprintf(out, "skipped:    %d\n", stats.Skipped)
	fmt.Fprintf(out, "errored:    %d\n", stats.Errored)
	for src, status := range stats.Statuses {
		fmt.Fprintf(out, "  %-12s %s\n", src, status)
	}
	for _, e := range stats.Errors {
		fmt.Fprintf(out, "  [%s] %s\n", e.Source, e.Message)
	}
}

func init() {
	scrapeCmd.Flags().StringSlice("sources", nil, "sources to scrape (default: all)")
	scrapeCmd.Flags().String("region", "", "city or metro area to search (required)")
	scrapeCmd.Flags().String("state", "", "two-letter state filter")
	scrapeCmd.Flags().Int("max", 0, "max results per source (0 = unlimited)")
	scrapeCmd.Flags().Bool("dry-run", false, "print candidates without staging them")
	scrapeCmd.Flags().Bool("skip-geocoding", false, "skip coordinate resolution")
	_ = scrapeCmd.MarkFlagRequired("region")
	rootCmd.AddCommand(scrapeCmd)
}
