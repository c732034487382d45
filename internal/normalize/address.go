// Package normalize parses free-form scraped contact data into the
// structured fields the directory stores, and resolves coordinates through
// the geocoding client.
package normalize

import (
	"regexp"
	"strings"
)

// ParsedAddress is the best-effort structured form of a free-text address.
// Any field may be empty; an unparseable address is a review flag, not an
// error, because only a human can adjudicate ambiguous scraped data.
type ParsedAddress struct {
	Street  string
	City    string
	State   string
	ZipCode string
}

// Complete reports whether the parse produced at least city and state,
// which is what the dedup heuristics and the geocoder need.
func (p ParsedAddress) Complete() bool {
	return p.City != "" && p.State != ""
}

var (
	// "MI 48126", "MI 48126-1234", or a bare state / bare zip.
	stateZipRe = regexp.MustCompile(`^([A-Za-z]{2})?\s*(\d{5}(?:-\d{4})?)?$`)
	zipTailRe  = regexp.MustCompile(`\s+(\d{5}(?:-\d{4})?)$`)
)

// ParseAddress splits a free-text US address into street, city, state, and
// zip. It understands the common comma-separated forms:
//
//	123 Main St, Dearborn, MI 48126
//	123 Main St Suite 4, Dearborn, MI
//	Dearborn, MI
//
// Unrecognized text lands in Street so nothing is silently dropped.
func ParseAddress(raw string) ParsedAddress {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ParsedAddress{}
	}

	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	switch len(parts) {
	case 1:
		return parseSinglePart(parts[0])
	case 2:
		// Either "City, ST zip" or "Street, City".
		if st, zip, ok := parseStateZip(parts[1]); ok {
			return ParsedAddress{City: parts[0], State: st, ZipCode: zip}
		}
		return ParsedAddress{Street: parts[0], City: parts[1]}
	default:
		// Last segment should be "ST zip"; the one before is the city and
		// everything earlier is the street.
		last := parts[len(parts)-1]
		if st, zip, ok := parseStateZip(last); ok {
			return ParsedAddress{
				Street:  strings.Join(parts[:len(parts)-2], ", "),
				City:    parts[len(parts)-2],
				State:   st,
				ZipCode: zip,
			}
		}
		// No trailing state, treat the final segment as the city.
		return ParsedAddress{
			Street: strings.Join(parts[:len(parts)-1], ", "),
			City:   last,
		}
	}
}

// parseSinglePart handles comma-free input: pull a trailing zip if present
// and keep the rest as street text.
func parseSinglePart(s string) ParsedAddress {
	if m := zipTailRe.FindStringSubmatch(s); m != nil {
		return ParsedAddress{
			Street:  strings.TrimSpace(strings.TrimSuffix(s, m[0])),
			ZipCode: m[1],
		}
	}
	return ParsedAddress{Street: s}
}

// parseStateZip recognizes "MI", "48126", or "MI 48126" segments.
func parseStateZip(s string) (state, zip string, ok bool) {
	m := stateZipRe.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return "", "", false
	}
	return strings.ToUpper(m[1]), m[2], true
}
