package staging

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// Engine runs the staging and promotion workflows on top of a Store. Both
// Stage and Promote execute their dedup check and write inside one
// transaction so concurrent runs cannot race past each other.
type Engine struct {
	store Store
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Stage persists a candidate as PENDING_REVIEW after checking it against
// both the staging area and the live catalog. A duplicate comes back as a
// DuplicateError; the caller counts it and moves on.
func (e *Engine) Stage(ctx context.Context, est model.ScrapedEstablishment) (*model.StagedRecord, error) {
	rec := &model.StagedRecord{
		ID:            uuid.New().String(),
		Establishment: est,
		Status:        model.StatusPendingReview,
		ScrapedAt:     time.Now().UTC(),
	}

	err := e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		// Serialize on the dedup key first, so a concurrent run staging
		// the same establishment commits or rolls back before our check.
		if err := tx.AcquireDedupLocks(ctx, KeyFor(&est)); err != nil {
			return err
		}
		if err := checkStagedDuplicate(ctx, tx, &est); err != nil {
			return err
		}
		if err := checkBusinessDuplicate(ctx, tx, &est); err != nil {
			return err
		}
		return tx.CreateStaged(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// PromoteResult reports the outcome of one promotion attempt.
type PromoteResult struct {
	Business *model.Business
	// Conflict is set instead of Business when the live catalog already
	// holds a duplicate. The staged record is left untouched for manual
	// review.
	Conflict *DuplicateError
}

// Promote publishes an approved candidate. Inside one transaction: re-run
// dedup against the live catalog, generate a unique slug, insert the
// Business with provenance, and mark the staged record APPROVED. Any
// failure rolls the whole promotion back.
func (e *Engine) Promote(ctx context.Context, stagedID, reviewedBy string) (*PromoteResult, error) {
	var result PromoteResult

	err := e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		rec, err := tx.GetStaged(ctx, stagedID)
		if err != nil {
			return err
		}
		if !rec.Status.CanTransition(model.StatusApproved) {
			return eris.Errorf("staging: cannot promote record in status %s", rec.Status)
		}

		est := &rec.Establishment

		// Records staged before the live entry existed can still collide
		// at promotion time, so the check runs again here.
		if err := checkBusinessDuplicate(ctx, tx, est); err != nil {
			var de *DuplicateError
			if eris.As(err, &de) {
				result.Conflict = de
				return errPromoteConflict
			}
			return err
		}

		slug, err := uniqueSlug(ctx, tx, est.Name, est.City)
		if err != nil {
			return err
		}

		if !est.HasCoordinates() {
			zap.L().Warn("promoting business without coordinates",
				zap.String("staged_id", rec.ID),
				zap.String("name", est.Name))
		}

		biz := &model.Business{
			ID:          uuid.New().String(),
			Slug:        slug,
			Name:        est.Name,
			Street:      est.Street,
			City:        est.City,
			State:       est.State,
			ZipCode:     est.ZipCode,
			Coordinates: est.Coordinates,
			Phone:       est.Phone,
			Website:     est.Website,
			Email:       est.Email,
			Description: est.Description,
			Category:    est.Category,
			Services:    est.Services,

			ScrapedBusinessID: rec.ID,
			ScrapedFrom:       est.Source,
			ConfidenceScore:   est.Confidence,

			CreatedAt: time.Now().UTC(),
		}
		if err := tx.CreateBusiness(ctx, biz); err != nil {
			return err
		}
		if err := tx.UpdateStagedStatus(ctx, rec.ID, model.StatusApproved, model.Review{ReviewedBy: reviewedBy}); err != nil {
			return err
		}

		result.Business = biz
		return nil
	})

	if err == errPromoteConflict {
		return &result, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// errPromoteConflict forces the transaction rollback on a live-catalog
// conflict while letting Promote return the typed result.
var errPromoteConflict = eris.New("staging: promotion conflict")

// Reject marks a pending record REJECTED with reviewer attribution.
func (e *Engine) Reject(ctx context.Context, stagedID string, review model.Review) error {
	return e.transition(ctx, stagedID, model.StatusRejected, review)
}

// Flag parks a pending record as FLAGGED for a second look.
func (e *Engine) Flag(ctx context.Context, stagedID string, review model.Review) error {
	return e.transition(ctx, stagedID, model.StatusFlagged, review)
}

// Requeue moves a FLAGGED record back to PENDING_REVIEW.
func (e *Engine) Requeue(ctx context.Context, stagedID string, review model.Review) error {
	return e.transition(ctx, stagedID, model.StatusPendingReview, review)
}

func (e *Engine) transition(ctx context.Context, stagedID string, to model.StagedStatus, review model.Review) error {
	return e.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		rec, err := tx.GetStaged(ctx, stagedID)
		if err != nil {
			return err
		}
		if !rec.Status.CanTransition(to) {
			return eris.Errorf("staging: illegal transition %s -> %s for %s", rec.Status, to, stagedID)
		}
		return tx.UpdateStagedStatus(ctx, stagedID, to, review)
	})
}
