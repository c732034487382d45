package normalize

import "strings"

// NormalizePhone reduces a US phone number to the canonical directory form
// "(XXX) XXX-XXXX". A leading country code 1 is stripped. Input that does
// not contain exactly ten digits is returned trimmed but otherwise
// untouched, so the reviewer sees what the source published.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return raw
	}

	return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
}
