package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// StagedStatus is the review lifecycle state of a staged record.
type StagedStatus string

const (
	StatusPendingReview StagedStatus = "PENDING_REVIEW"
	StatusApproved      StagedStatus = "APPROVED"
	StatusRejected      StagedStatus = "REJECTED"
	StatusFlagged       StagedStatus = "FLAGGED"
)

// ParseStagedStatus converts a string into a StagedStatus.
func ParseStagedStatus(s string) (StagedStatus, error) {
	switch StagedStatus(s) {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusFlagged:
		return StagedStatus(s), nil
	default:
		return "", eris.Errorf("model: unknown staged status %q", s)
	}
}

// CanTransition reports whether a status change is allowed. APPROVED and
// REJECTED are terminal. FLAGGED returns to PENDING_REVIEW only through an
// explicit re-review, which is the one transition out of FLAGGED.
func (s StagedStatus) CanTransition(to StagedStatus) bool {
	switch s {
	case StatusPendingReview:
		return to == StatusApproved || to == StatusRejected || to == StatusFlagged
	case StatusFlagged:
		return to == StatusPendingReview
	default:
		return false
	}
}

// Review carries the reviewer attribution recorded on a status change.
type Review struct {
	ReviewedBy string `json:"reviewed_by"`
	Note       string `json:"note,omitempty"`
}

// StagedRecord is a persisted candidate awaiting human review. It holds
// every ScrapedEstablishment field plus the review lifecycle.
type StagedRecord struct {
	ID            string               `json:"id" db:"id"`
	Establishment ScrapedEstablishment `json:"establishment"`
	Status        StagedStatus         `json:"status" db:"status"`
	ScrapedAt     time.Time            `json:"scraped_at" db:"scraped_at"`
	ReviewedAt    *time.Time           `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy    string               `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewNote    string               `json:"review_note,omitempty" db:"review_note"`
}
