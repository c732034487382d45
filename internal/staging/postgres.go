package staging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/ummahlocal/scout-cli/internal/db"
	"github.com/ummahlocal/scout-cli/internal/model"
)

// pgQuerier is the query surface shared by db.Pool and pgx.Tx, so every
// store method works both standalone and inside WithTx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using a pgx pool.
type PostgresStore struct {
	pool db.Pool
	q    pgQuerier
	inTx bool
}

// NewPostgres wraps an established pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS staged_businesses (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	city        TEXT NOT NULL DEFAULT '',
	street      TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	confidence  INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'PENDING_REVIEW',
	data        JSONB NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL,
	reviewed_at TIMESTAMPTZ,
	reviewed_by TEXT NOT NULL DEFAULT '',
	review_note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS businesses (
	id                  UUID PRIMARY KEY,
	slug                TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	city                TEXT NOT NULL DEFAULT '',
	street              TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	data                JSONB NOT NULL,
	scraped_business_id UUID NOT NULL REFERENCES staged_businesses(id),
	created_at          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staged_status ON staged_businesses(status);
CREATE INDEX IF NOT EXISTS idx_staged_name_city ON staged_businesses(lower(name), lower(city));
CREATE INDEX IF NOT EXISTS idx_staged_phone ON staged_businesses(phone);
CREATE INDEX IF NOT EXISTS idx_businesses_name_city ON businesses(lower(name), lower(city));
CREATE INDEX IF NOT EXISTS idx_businesses_phone ON businesses(phone);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.q.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.pool != nil && !s.inTx {
		s.pool.Close()
	}
	return nil
}

// WithTx runs fn against a store bound to one transaction. Reuses the open
// transaction when called on a transactional store.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}

	txStore := &PostgresStore{pool: s.pool, q: tx, inTx: true}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit tx")
	}
	return nil
}

func (s *PostgresStore) CreateStaged(ctx context.Context, rec *model.StagedRecord) error {
	data, err := json.Marshal(rec.Establishment)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal establishment")
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO staged_businesses
		 (id, name, city, street, phone, source, confidence, status, data, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.Establishment.Name, rec.Establishment.City,
		rec.Establishment.Street, rec.Establishment.Phone,
		string(rec.Establishment.Source), rec.Establishment.Confidence,
		string(rec.Status), data, rec.ScrapedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert staged %s", rec.ID)
}

const pgStagedColumns = `id, status, data, scraped_at, reviewed_at, reviewed_by, review_note`

func (s *PostgresStore) GetStaged(ctx context.Context, id string) (*model.StagedRecord, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+pgStagedColumns+` FROM staged_businesses WHERE id = $1`, id)
	rec, err := scanStagedPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get staged %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListStaged(ctx context.Context, filter StagedFilter) ([]model.StagedRecord, error) {
	query := `SELECT ` + pgStagedColumns + ` FROM staged_businesses WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		query += fmt.Sprintf(` AND source = $%d`, len(args))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		query += fmt.Sprintf(` AND lower(city) = lower($%d)`, len(args))
	}
	if filter.MinConfidence > 0 {
		args = append(args, filter.MinConfidence)
		query += fmt.Sprintf(` AND confidence >= $%d`, len(args))
	}
	query += ` ORDER BY scraped_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list staged")
	}
	defer rows.Close()

	var out []model.StagedRecord
	for rows.Next() {
		rec, err := scanStagedPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan staged")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list staged rows")
}

func (s *PostgresStore) UpdateStagedStatus(ctx context.Context, id string, status model.StagedStatus, review model.Review) error {
	// Guarding on the allowed source statuses makes the transition atomic
	// under READ COMMITTED: the UPDATE re-checks the latest committed row,
	// so a promote and a reject racing on the same record cannot both win.
	tag, err := s.q.Exec(ctx,
		`UPDATE staged_businesses
		 SET status = $1, reviewed_at = $2, reviewed_by = $3, review_note = $4
		 WHERE id = $5 AND status = ANY($6)`,
		string(status), time.Now().UTC(), review.ReviewedBy, review.Note, id,
		transitionSources(status),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update staged status %s", id)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetStaged(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// AcquireDedupLocks takes one advisory transaction lock per non-empty
// dedup rule key. Two concurrent staging transactions for the same
// establishment serialize here, so the loser's duplicate check sees the
// winner's committed insert. There is no unique index to fall back on:
// the rules are OR-matched across three column pairs. Lock ids are sorted
// so overlapping key sets cannot deadlock.
func (s *PostgresStore) AcquireDedupLocks(ctx context.Context, key DedupKey) error {
	for _, id := range dedupLockIDs(key) {
		if _, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, id); err != nil {
			return eris.Wrap(err, "postgres: acquire dedup lock")
		}
	}
	return nil
}

// dedupLockIDs hashes each dedup rule key into an advisory lock id,
// lowercased to match the case-insensitive rules.
func dedupLockIDs(key DedupKey) []int64 {
	var ids []int64
	hash := func(parts ...string) int64 {
		h := fnv.New64a()
		for _, p := range parts {
			_, _ = h.Write([]byte(strings.ToLower(p)))
			_, _ = h.Write([]byte{0})
		}
		return int64(h.Sum64())
	}
	if key.Name != "" && key.City != "" {
		ids = append(ids, hash("name", key.Name, key.City))
	}
	if key.Phone != "" {
		ids = append(ids, hash("phone", key.Phone))
	}
	if key.Street != "" && key.City != "" {
		ids = append(ids, hash("street", key.Street, key.City))
	}
	slices.Sort(ids)
	return ids
}

func (s *PostgresStore) FindStagedMatches(ctx context.Context, key DedupKey) ([]model.StagedRecord, error) {
	where, args := pgDedupClauses(key)
	if where == "" {
		return nil, nil
	}

	rows, err := s.q.Query(ctx,
		`SELECT `+pgStagedColumns+` FROM staged_businesses WHERE `+where, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find staged matches")
	}
	defer rows.Close()

	var out []model.StagedRecord
	for rows.Next() {
		rec, err := scanStagedPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan staged match")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: staged match rows")
}

func (s *PostgresStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	data, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal business")
	}

	_, err = s.q.Exec(ctx,
		`INSERT INTO businesses
		 (id, slug, name, city, street, phone, data, scraped_business_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.Slug, b.Name, b.City, b.Street, b.Phone,
		data, b.ScrapedBusinessID, b.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert business %s", b.ID)
}

func (s *PostgresStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error) {
	query := `SELECT data FROM businesses WHERE 1=1`
	var args []any
	if filter.City != "" {
		args = append(args, filter.City)
		query += fmt.Sprintf(` AND lower(city) = lower($%d)`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

func (s *PostgresStore) FindBusinessMatches(ctx context.Context, key DedupKey) ([]model.Business, error) {
	where, args := pgDedupClauses(key)
	if where == "" {
		return nil, nil
	}

	rows, err := s.q.Query(ctx, `SELECT data FROM businesses WHERE `+where, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find business matches")
	}
	defer rows.Close()

	return scanBusinesses(rows)
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(1) FROM businesses WHERE slug = $1`, slug).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: slug exists %s", slug)
	}
	return n > 0, nil
}

// pgDedupClauses builds the numbered OR-matched WHERE clause for the three
// dedup rules.
func pgDedupClauses(key DedupKey) (string, []any) {
	var clauses []string
	var args []any
	if key.Name != "" && key.City != "" {
		args = append(args, key.Name, key.City)
		clauses = append(clauses, fmt.Sprintf(`(lower(name) = lower($%d) AND lower(city) = lower($%d))`, len(args)-1, len(args)))
	}
	if key.Phone != "" {
		args = append(args, key.Phone)
		clauses = append(clauses, fmt.Sprintf(`(phone = $%d)`, len(args)))
	}
	if key.Street != "" && key.City != "" {
		args = append(args, key.Street, key.City)
		clauses = append(clauses, fmt.Sprintf(`(lower(street) = lower($%d) AND lower(city) = lower($%d))`, len(args)-1, len(args)))
	}
	return strings.Join(clauses, " OR "), args
}

func scanStagedPG(row pgx.Row) (*model.StagedRecord, error) {
	var (
		rec        model.StagedRecord
		status     string
		data       []byte
		reviewedAt *time.Time
	)
	if err := row.Scan(&rec.ID, &status, &data, &rec.ScrapedAt, &reviewedAt, &rec.ReviewedBy, &rec.ReviewNote); err != nil {
		return nil, err
	}
	rec.Status = model.StagedStatus(status)
	rec.ReviewedAt = reviewedAt
	if err := json.Unmarshal(data, &rec.Establishment); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanBusinesses(rows pgx.Rows) ([]model.Business, error) {
	var out []model.Business
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		var b model.Business
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal business")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: business rows")
}
