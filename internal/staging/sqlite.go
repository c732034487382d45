package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// sqlDB is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// every query method works both standalone and inside WithTx.
type sqlDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite. A ":memory:" DSN
// gives tests and dry runs a throwaway backend.
type SQLiteStore struct {
	db *sql.DB
	q  sqlDB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Each pooled connection to :memory: would get its own database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staged_businesses (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	city        TEXT NOT NULL DEFAULT '',
	street      TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	source      TEXT NOT NULL,
	confidence  INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL DEFAULT 'PENDING_REVIEW',
	data        TEXT NOT NULL,
	scraped_at  DATETIME NOT NULL,
	reviewed_at DATETIME,
	reviewed_by TEXT NOT NULL DEFAULT '',
	review_note TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS businesses (
	id                  TEXT PRIMARY KEY,
	slug                TEXT NOT NULL UNIQUE,
	name                TEXT NOT NULL,
	city                TEXT NOT NULL DEFAULT '',
	street              TEXT NOT NULL DEFAULT '',
	phone               TEXT NOT NULL DEFAULT '',
	data                TEXT NOT NULL,
	scraped_business_id TEXT NOT NULL REFERENCES staged_businesses(id),
	created_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_staged_status ON staged_businesses(status);
CREATE INDEX IF NOT EXISTS idx_staged_name_city ON staged_businesses(name, city);
CREATE INDEX IF NOT EXISTS idx_staged_phone ON staged_businesses(phone);
CREATE INDEX IF NOT EXISTS idx_businesses_name_city ON businesses(name, city);
CREATE INDEX IF NOT EXISTS idx_businesses_phone ON businesses(phone);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithTx runs fn against a store bound to one transaction. A transactional
// store calling WithTx again reuses the open transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(ctx, s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}

	txStore := &SQLiteStore{db: s.db, q: tx}
	if err := fn(ctx, txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit tx")
	}
	return nil
}

func (s *SQLiteStore) CreateStaged(ctx context.Context, rec *model.StagedRecord) error {
	data, err := json.Marshal(rec.Establishment)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal establishment")
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO staged_businesses
		 (id, name, city, street, phone, source, confidence, status, data, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Establishment.Name, rec.Establishment.City,
		rec.Establishment.Street, rec.Establishment.Phone,
		string(rec.Establishment.Source), rec.Establishment.Confidence,
		string(rec.Status), string(data), rec.ScrapedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert staged %s", rec.ID)
}

const sqliteStagedColumns = `id, status, data, scraped_at, reviewed_at, reviewed_by, review_note`

func (s *SQLiteStore) GetStaged(ctx context.Context, id string) (*model.StagedRecord, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sqliteStagedColumns+` FROM staged_businesses WHERE id = ?`, id)
	rec, err := scanStagedSQL(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get staged %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListStaged(ctx context.Context, filter StagedFilter) ([]model.StagedRecord, error) {
	query := `SELECT ` + sqliteStagedColumns + ` FROM staged_businesses WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.City != "" {
		query += ` AND city = ? COLLATE NOCASE`
		args = append(args, filter.City)
	}
	if filter.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	query += ` ORDER BY scraped_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list staged")
	}
	defer rows.Close()

	var out []model.StagedRecord
	for rows.Next() {
		rec, err := scanStagedSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staged")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list staged rows")
}

func (s *SQLiteStore) UpdateStagedStatus(ctx context.Context, id string, status model.StagedStatus, review model.Review) error {
	// Same transition guard as the Postgres store: the UPDATE only fires
	// from a status that may legally move to the target.
	allowed := transitionSources(status)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(allowed)), ",")
	args := []any{string(status), time.Now().UTC(), review.ReviewedBy, review.Note, id}
	for _, a := range allowed {
		args = append(args, a)
	}

	res, err := s.q.ExecContext(ctx,
		`UPDATE staged_businesses
		 SET status = ?, reviewed_at = ?, reviewed_by = ?, review_note = ?
		 WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update staged status %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, err := s.GetStaged(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrStatusConflict
	}
	return nil
}

// AcquireDedupLocks is a no-op here. SQLite allows one writer at a time,
// so a staging transaction's check-then-insert never interleaves with a
// committed concurrent insert; the later writer fails busy instead.
func (s *SQLiteStore) AcquireDedupLocks(context.Context, DedupKey) error { return nil }

func (s *SQLiteStore) FindStagedMatches(ctx context.Context, key DedupKey) ([]model.StagedRecord, error) {
	clauses, args := dedupClauses(key, "?")
	if len(clauses) == 0 {
		return nil, nil
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT `+sqliteStagedColumns+` FROM staged_businesses WHERE `+strings.Join(clauses, " OR "),
		args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find staged matches")
	}
	defer rows.Close()

	var out []model.StagedRecord
	for rows.Next() {
		rec, err := scanStagedSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan staged match")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: staged match rows")
}

func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	data, err := json.Marshal(b)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal business")
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO businesses
		 (id, slug, name, city, street, phone, data, scraped_business_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Slug, b.Name, b.City, b.Street, b.Phone,
		string(data), b.ScrapedBusinessID, b.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert business %s", b.ID)
}

func (s *SQLiteStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error) {
	query := `SELECT data FROM businesses WHERE 1=1`
	var args []any
	if filter.City != "" {
		query += ` AND city = ? COLLATE NOCASE`
		args = append(args, filter.City)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		var b model.Business
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal business")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: business rows")
}

func (s *SQLiteStore) FindBusinessMatches(ctx context.Context, key DedupKey) ([]model.Business, error) {
	clauses, args := dedupClauses(key, "?")
	if len(clauses) == 0 {
		return nil, nil
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT data FROM businesses WHERE `+strings.Join(clauses, " OR "),
		args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find business matches")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business match")
		}
		var b model.Business
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal business match")
		}
		out = append(out, b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: business match rows")
}

func (s *SQLiteStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM businesses WHERE slug = ?`, slug).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: slug exists %s", slug)
	}
	return n > 0, nil
}

// dedupClauses builds the OR-matched WHERE clauses for the three dedup
// rules, skipping rules whose key fields are empty. placeholder is "?" for
// SQLite; the Postgres side numbers its own.
func dedupClauses(key DedupKey, placeholder string) ([]string, []any) {
	var clauses []string
	var args []any
	if key.Name != "" && key.City != "" {
		clauses = append(clauses, `(name = `+placeholder+` COLLATE NOCASE AND city = `+placeholder+` COLLATE NOCASE)`)
		args = append(args, key.Name, key.City)
	}
	if key.Phone != "" {
		clauses = append(clauses, `(phone = `+placeholder+`)`)
		args = append(args, key.Phone)
	}
	if key.Street != "" && key.City != "" {
		clauses = append(clauses, `(street = `+placeholder+` COLLATE NOCASE AND city = `+placeholder+` COLLATE NOCASE)`)
		args = append(args, key.Street, key.City)
	}
	return clauses, args
}

// rowScanner lets one scan helper serve both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStagedSQL(row rowScanner) (*model.StagedRecord, error) {
	var (
		rec        model.StagedRecord
		status     string
		data       string
		reviewedAt sql.NullTime
	)
	if err := row.Scan(&rec.ID, &status, &data, &rec.ScrapedAt, &reviewedAt, &rec.ReviewedBy, &rec.ReviewNote); err != nil {
		return nil, err
	}
	rec.Status = model.StagedStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	if err := json.Unmarshal([]byte(data), &rec.Establishment); err != nil {
		return nil, err
	}
	return &rec, nil
}
