// Package model defines the core data types shared across the ingestion pipeline.
package model

import "github.com/rotisserie/eris"

// Source identifies an external data provider. The set is closed: every
// record produced by the pipeline carries exactly one of these values.
type Source string

const (
	SourceZabihah     Source = "zabihah"
	SourceHalalJoints Source = "halaljoints"
	SourceYelp        Source = "yelp"
	SourceGoogleMaps  Source = "gmaps"
)

// AllSources returns every known source in registration order.
func AllSources() []Source {
	return []Source{SourceZabihah, SourceHalalJoints, SourceYelp, SourceGoogleMaps}
}

// ParseSource converts a string into a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceZabihah, SourceHalalJoints, SourceYelp, SourceGoogleMaps:
		return Source(s), nil
	default:
		return "", eris.Errorf("model: unknown source %q", s)
	}
}

func (s Source) String() string {
	return string(s)
}
