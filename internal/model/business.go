package model

import "time"

// Business is a published directory entry. Created exactly once per
// StagedRecord by the promotion transaction; the provenance fields link it
// back to its originating scrape.
type Business struct {
	ID          string       `json:"id" db:"id"`
	Slug        string       `json:"slug" db:"slug"`
	Name        string       `json:"name" db:"name"`
	Street      string       `json:"street,omitempty" db:"street"`
	City        string       `json:"city,omitempty" db:"city"`
	State       string       `json:"state,omitempty" db:"state"`
	ZipCode     string       `json:"zip_code,omitempty" db:"zip_code"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Phone       string       `json:"phone,omitempty" db:"phone"`
	Website     string       `json:"website,omitempty" db:"website"`
	Email       string       `json:"email,omitempty" db:"email"`
	Description string       `json:"description,omitempty" db:"description"`
	Category    string       `json:"category,omitempty" db:"category"`
	Services    []string     `json:"services,omitempty"`

	// Provenance.
	ScrapedBusinessID string `json:"scraped_business_id" db:"scraped_business_id"`
	ScrapedFrom       Source `json:"scraped_from" db:"scraped_from"`
	ConfidenceScore   int    `json:"confidence_score" db:"confidence_score"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
