// Package staging persists scraped candidates, deduplicates them against
// the staging area and the live catalog, and promotes approved records
// into published Business entries.
package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// ErrNotFound is returned when a staged record or business does not exist.
var ErrNotFound = errors.New("staging: not found")

// ErrStatusConflict is returned when a status update loses the race to a
// concurrent reviewer: the record exists but its status no longer allows
// the transition. Nothing was written.
var ErrStatusConflict = errors.New("staging: record status changed concurrently")

// StagedFilter narrows ListStaged. Zero values mean "any".
type StagedFilter struct {
	Status        model.StagedStatus
	Source        model.Source
	City          string
	MinConfidence int
	Limit         int
	Offset        int
}

// BusinessFilter narrows ListBusinesses.
type BusinessFilter struct {
	City   string
	Limit  int
	Offset int
}

// DedupKey carries the normalized fields duplicate matching runs on. All
// matching is exact: fuzzy matching stays out of the pipeline so that a
// human reviewer, not string distance, decides borderline cases.
type DedupKey struct {
	Name   string
	City   string
	Phone  string
	Street string
}

// KeyFor builds the dedup key for an establishment.
func KeyFor(e *model.ScrapedEstablishment) DedupKey {
	return DedupKey{
		Name:   e.Name,
		City:   e.City,
		Phone:  e.Phone,
		Street: e.Street,
	}
}

// DuplicateError marks a candidate that exactly matches an existing record.
// The staging attempt is dropped, never merged automatically.
type DuplicateError struct {
	// MatchedStagedID is set when the duplicate lives in the staging area.
	MatchedStagedID string
	// MatchedBusinessID is set when the duplicate is already published.
	MatchedBusinessID string
	// Rule names which of the three match rules fired.
	Rule string
}

func (e *DuplicateError) Error() string {
	if e.MatchedBusinessID != "" {
		return fmt.Sprintf("staging: duplicate of business %s (%s)", e.MatchedBusinessID, e.Rule)
	}
	return fmt.Sprintf("staging: duplicate of staged record %s (%s)", e.MatchedStagedID, e.Rule)
}

// IsDuplicate reports whether err is a DuplicateError.
func IsDuplicate(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}

// transitionSources lists the statuses allowed to move to the target. The
// update statements guard on it so a concurrent reviewer can never
// overwrite a terminal status, whatever the caller read earlier.
func transitionSources(to model.StagedStatus) []string {
	all := []model.StagedStatus{
		model.StatusPendingReview, model.StatusApproved,
		model.StatusRejected, model.StatusFlagged,
	}
	var out []string
	for _, s := range all {
		if s.CanTransition(to) {
			out = append(out, string(s))
		}
	}
	return out
}

// Store is the persistence contract. PostgresStore backs production,
// SQLiteStore backs local development and tests; both are selected once at
// process start.
type Store interface {
	// Staged records
	CreateStaged(ctx context.Context, rec *model.StagedRecord) error
	GetStaged(ctx context.Context, id string) (*model.StagedRecord, error)
	ListStaged(ctx context.Context, filter StagedFilter) ([]model.StagedRecord, error)
	UpdateStagedStatus(ctx context.Context, id string, status model.StagedStatus, review model.Review) error
	// FindStagedMatches returns staged records matching any dedup rule:
	// name+city, phone, or street+city. Empty key fields never match.
	FindStagedMatches(ctx context.Context, key DedupKey) ([]model.StagedRecord, error)
	// AcquireDedupLocks serializes concurrent staging of the same dedup
	// key so two runs cannot both pass the duplicate check. Only
	// meaningful inside WithTx; locks release with the transaction.
	AcquireDedupLocks(ctx context.Context, key DedupKey) error

	// Published businesses
	CreateBusiness(ctx context.Context, b *model.Business) error
	ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error)
	FindBusinessMatches(ctx context.Context, key DedupKey) ([]model.Business, error)
	SlugExists(ctx context.Context, slug string) (bool, error)

	// WithTx runs fn against a Store bound to one transaction. fn returning
	// an error rolls everything back. Calls on the outer Store inside fn
	// are not part of the transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
