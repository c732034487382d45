package ingest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahlocal/scout-cli/internal/model"
	"github.com/ummahlocal/scout-cli/internal/normalize"
	"github.com/ummahlocal/scout-cli/internal/scraper"
	"github.com/ummahlocal/scout-cli/internal/staging"
)

// fakeAdapter emits canned candidates, optionally failing afterward.
type fakeAdapter struct {
	name       model.Source
	candidates []scraper.RawCandidate
	failWith   error
	noState    bool
}

func (f *fakeAdapter) Name() model.Source        { return f.name }
func (f *fakeAdapter) Kind() scraper.Kind        { return scraper.KindStatic }
func (f *fakeAdapter) SupportsState(string) bool { return !f.noState }

func (f *fakeAdapter) Scrape(ctx context.Context, cfg scraper.RunConfig, emit scraper.EmitFunc) error {
	for _, c := range f.candidates {
		c.Source = f.name
		if err := emit(c); err != nil {
			return err
		}
	}
	return f.failWith
}

func candidate(name, addr, phone string) scraper.RawCandidate {
	return scraper.RawCandidate{
		Name:        name,
		RawAddress:  addr,
		Phone:       phone,
		Description: "Zabiha halal meat, hand slaughtered.",
		SourceURL:   "https://example.com/listing",
	}
}

func newTestOrchestrator(t *testing.T, adapters ...scraper.Adapter) (*Orchestrator, *staging.SQLiteStore) {
	t.Helper()

	store, err := staging.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	reg := scraper.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}

	n := normalize.New(nil) // nil geocode client skips geocoding
	return NewOrchestrator(reg, n, staging.NewEngine(store)), store
}

func runConfig() scraper.RunConfig {
	cfg := scraper.DefaultRunConfig()
	cfg.Region = "Dearborn"
	return cfg
}

func TestOrchestrator_StagesCandidates(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeAdapter{
		name: model.SourceZabihah,
		candidates: []scraper.RawCandidate{
			candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			candidate("Crescent Bakery", "45 Oak Ave, Dearborn, MI 48126", "(313) 555-0102"),
		},
	})

	stats, err := o.Run(context.Background(), runConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 2, stats.Staged)
	assert.Equal(t, 0, stats.Duplicates)
	assert.Equal(t, SourceCompleted, stats.Statuses[model.SourceZabihah])

	records, err := store.ListStaged(context.Background(), staging.StagedFilter{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, model.StatusPendingReview, rec.Status)
		assert.NotZero(t, rec.Establishment.Confidence)
		assert.Contains(t, rec.Establishment.Signals, "zabiha")
	}
}

func TestOrchestrator_DryRunStagesNothing(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeAdapter{
		name: model.SourceZabihah,
		candidates: []scraper.RawCandidate{
			candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			candidate("Crescent Bakery", "45 Oak Ave, Dearborn, MI 48126", "(313) 555-0102"),
			candidate("Noor Market", "78 Pine St, Dearborn, MI 48124", "(313) 555-0103"),
		},
	})
	var out bytes.Buffer
	o.SetOutput(&out)

	cfg := runConfig()
	cfg.DryRun = true
	stats, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Attempted)
	assert.Equal(t, 0, stats.Staged)

	records, err := store.ListStaged(context.Background(), staging.StagedFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Contains(t, out.String(), "Al-Madina Grill")
	assert.Contains(t, out.String(), "Noor Market")
}

func TestOrchestrator_DuplicateAcrossSources(t *testing.T) {
	// Sequential (concurrency 1): the yelp copy of the same business hits
	// stage-time dedup.
	o, _ := newTestOrchestrator(t,
		&fakeAdapter{
			name: model.SourceZabihah,
			candidates: []scraper.RawCandidate{
				candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			},
		},
		&fakeAdapter{
			name: model.SourceYelp,
			candidates: []scraper.RawCandidate{
				candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			},
		},
	)

	stats, err := o.Run(context.Background(), runConfig())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Attempted)
	assert.Equal(t, 1, stats.Staged)
	assert.Equal(t, 1, stats.Duplicates)
}

func TestOrchestrator_SiblingFailureIsolation(t *testing.T) {
	o, store := newTestOrchestrator(t,
		&fakeAdapter{
			name: model.SourceZabihah,
			candidates: []scraper.RawCandidate{
				candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			},
			failWith: scraper.NewStructuralError(model.SourceZabihah, "listing selector missing"),
		},
		&fakeAdapter{
			name: model.SourceYelp,
			candidates: []scraper.RawCandidate{
				candidate("Crescent Bakery", "45 Oak Ave, Dearborn, MI 48126", "(313) 555-0102"),
			},
		},
	)

	stats, err := o.Run(context.Background(), runConfig())
	require.NoError(t, err)

	// Partial results from the failed source are kept.
	assert.Equal(t, 2, stats.Staged)
	assert.Equal(t, SourceFailed, stats.Statuses[model.SourceZabihah])
	assert.Equal(t, SourceCompleted, stats.Statuses[model.SourceYelp])
	assert.True(t, stats.HasFailures())
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, model.SourceZabihah, stats.Errors[0].Source)

	records, err := store.ListStaged(context.Background(), staging.StagedFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestOrchestrator_RobotsDisallowedIsSkip(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAdapter{
		name:     model.SourceHalalJoints,
		failWith: &scraper.RobotsDisallowedError{Source: model.SourceHalalJoints},
	})

	stats, err := o.Run(context.Background(), runConfig())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, SourceSkipped, stats.Statuses[model.SourceHalalJoints])
	assert.False(t, stats.HasFailures())
}

func TestOrchestrator_StateFilterDropIsSkip(t *testing.T) {
	o, _ := newTestOrchestrator(t,
		&fakeAdapter{
			name: model.SourceZabihah,
			candidates: []scraper.RawCandidate{
				candidate("Al-Madina Grill", "123 Main St, Dearborn, MI 48124", "(313) 555-0101"),
			},
		},
		&fakeAdapter{name: model.SourceHalalJoints, noState: true},
	)

	cfg := runConfig()
	cfg.State = "MI"
	stats, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	// The filtered-out source shows up in the summary, not silently gone.
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, SourceSkipped, stats.Statuses[model.SourceHalalJoints])
	assert.Equal(t, SourceCompleted, stats.Statuses[model.SourceZabihah])
	assert.Equal(t, 1, stats.Staged)
	assert.False(t, stats.HasFailures())
}

func TestOrchestrator_UnknownSourceFailsBeforeScraping(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAdapter{name: model.SourceZabihah})

	cfg := runConfig()
	cfg.Sources = []string{"craigslist"}
	_, err := o.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")
}

func TestOrchestrator_InvalidStateFailsValidation(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeAdapter{name: model.SourceZabihah})

	cfg := runConfig()
	cfg.State = "Michigan"
	_, err := o.Run(context.Background(), cfg)
	assert.Error(t, err)
}

func TestBuildEstablishment_FlagsMissingContact(t *testing.T) {
	c := candidate("Noor Market", "78 Pine St, Dearborn, MI 48124", "")
	n := normalize.New(nil)
	norm := n.Normalize(context.Background(), normalize.Input{RawAddress: c.RawAddress})

	est := buildEstablishment(c, norm)
	assert.Contains(t, est.Flags, model.FlagMissingContact)
	assert.Contains(t, est.Flags, model.FlagNeedsGeocoding)
}

func TestBuildEstablishment_InfersCategory(t *testing.T) {
	c := scraper.RawCandidate{
		Name:        "Makkah Meat Market",
		Description: "Fresh zabiha halal meats, butcher on site.",
		Source:      model.SourceZabihah,
	}
	est := buildEstablishment(c, normalize.Normalized{})
	assert.Equal(t, "butcher", est.Category)
	assert.Contains(t, est.Signals, "halal")
}
