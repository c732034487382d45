package staging

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgres(mock), mock
}

func TestPostgresStore_GetStaged_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM staged_businesses WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetStaged(context.Background(), "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetStaged(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	scrapedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"id", "status", "data", "scraped_at", "reviewed_at", "reviewed_by", "review_note"}).
		AddRow("rec-1", "PENDING_REVIEW",
			[]byte(`{"name":"Al-Madina Grill","city":"Dearborn","source":"zabihah","confidence":45}`),
			scrapedAt, (*time.Time)(nil), "", "")

	mock.ExpectQuery(`SELECT .+ FROM staged_businesses WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(rows)

	rec, err := s.GetStaged(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReview, rec.Status)
	assert.Equal(t, "Al-Madina Grill", rec.Establishment.Name)
	assert.Equal(t, 45, rec.Establishment.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStagedStatus_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE staged_businesses`).
		WithArgs("REJECTED", pgxmock.AnyArg(), "reviewer", "spam", "missing-id",
			[]string{"PENDING_REVIEW"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT .+ FROM staged_businesses WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	err := s.UpdateStagedStatus(context.Background(), "missing-id", model.StatusRejected,
		model.Review{ReviewedBy: "reviewer", Note: "spam"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStagedStatus_LosesRaceToReviewer(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// The guarded UPDATE matches no row: another reviewer already moved
	// the record to a status that cannot transition to REJECTED.
	mock.ExpectExec(`UPDATE staged_businesses`).
		WithArgs("REJECTED", pgxmock.AnyArg(), "reviewer", "", "rec-1",
			[]string{"PENDING_REVIEW"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	rows := pgxmock.NewRows([]string{"id", "status", "data", "scraped_at", "reviewed_at", "reviewed_by", "review_note"}).
		AddRow("rec-1", "APPROVED", []byte(`{"name":"Al-Madina Grill"}`),
			time.Now(), (*time.Time)(nil), "other-reviewer", "")
	mock.ExpectQuery(`SELECT .+ FROM staged_businesses WHERE id = \$1`).
		WithArgs("rec-1").
		WillReturnRows(rows)

	err := s.UpdateStagedStatus(context.Background(), "rec-1", model.StatusRejected,
		model.Review{ReviewedBy: "reviewer"})
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SlugExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM businesses WHERE slug = \$1`).
		WithArgs("al-madina-grill-dearborn").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.SlugExists(context.Background(), "al-madina-grill-dearborn")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithTxRollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO staged_businesses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errInsertFailed)
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, tx Store) error {
		return tx.CreateStaged(ctx, &model.StagedRecord{
			ID:            "rec-1",
			Establishment: sampleEstablishment(),
			Status:        model.StatusPendingReview,
			ScrapedAt:     time.Now(),
		})
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StageTakesDedupLocksBeforeChecking(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	engine := NewEngine(s)

	mock.ExpectBegin()
	// One advisory lock per dedup rule, before either duplicate query.
	for range 3 {
		mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).
			WithArgs(pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
	}
	mock.ExpectQuery(`SELECT .+ FROM staged_businesses WHERE \(lower\(name\)`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "data", "scraped_at", "reviewed_at", "reviewed_by", "review_note"}))
	mock.ExpectQuery(`SELECT data FROM businesses WHERE \(lower\(name\)`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"data"}))
	mock.ExpectExec(`INSERT INTO staged_businesses`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	rec, err := engine.Stage(context.Background(), sampleEstablishment())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingReview, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupLockIDs(t *testing.T) {
	full := DedupKey{Name: "Al-Madina Grill", City: "Dearborn", Phone: "(313) 555-0101", Street: "123 Main St"}

	ids := dedupLockIDs(full)
	require.Len(t, ids, 3)
	assert.True(t, slices.IsSorted(ids))

	// Case differences hash to the same locks, matching the match rules.
	upper := dedupLockIDs(DedupKey{Name: "AL-MADINA GRILL", City: "DEARBORN", Phone: "(313) 555-0101", Street: "123 MAIN ST"})
	assert.Equal(t, ids, upper)

	// Rules with empty key fields take no lock.
	assert.Len(t, dedupLockIDs(DedupKey{Phone: "(313) 555-0101"}), 1)
	assert.Empty(t, dedupLockIDs(DedupKey{}))
}

func TestPostgresStore_FindStagedMatches_EmptyKey(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	matches, err := s.FindStagedMatches(context.Background(), DedupKey{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

var errInsertFailed = pgx.ErrTxClosed
