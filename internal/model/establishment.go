package model

// Coordinates is a latitude/longitude pair. A record either has both values
// or has no Coordinates at all; a partial pair is never constructed.
type Coordinates struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// ScrapedEstablishment is a fully assembled candidate produced by the
// orchestrator: raw adapter output plus normalized contact fields and the
// signal analysis result. It is immutable once constructed.
type ScrapedEstablishment struct {
	Name        string       `json:"name"`
	RawAddress  string       `json:"raw_address"`
	Street      string       `json:"street,omitempty"`
	City        string       `json:"city,omitempty"`
	State       string       `json:"state,omitempty"`
	ZipCode     string       `json:"zip_code,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Phone       string       `json:"phone,omitempty"`
	Website     string       `json:"website,omitempty"`
	Email       string       `json:"email,omitempty"`
	Description string       `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	Services    []string     `json:"services,omitempty"`
	Source      Source       `json:"source"`
	SourceURL   string       `json:"source_url"`
	Signals     []string     `json:"signals,omitempty"`
	Confidence  int          `json:"confidence"`
	Flags       []string     `json:"flags,omitempty"`
}

// Candidate flags attached during normalization. Reviewers filter on these.
const (
	FlagNeedsGeocoding  = "needs_geocoding"
	FlagUnparsedAddress = "unparsed_address"
	FlagMissingContact  = "missing_contact"
)

// HasCoordinates reports whether geocoding produced a usable pair.
func (e *ScrapedEstablishment) HasCoordinates() bool {
	return e.Coordinates != nil
}
