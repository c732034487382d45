package staging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugify converts a business name and city into a URL slug: diacritics
// stripped, lowercased, runs of non-alphanumerics collapsed to single
// hyphens.
func slugify(name, city string) string {
	base := name
	if city != "" {
		base = name + " " + city
	}

	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), base)
	if err != nil {
		stripped = base
	}

	var b strings.Builder
	prevHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug generates a slug that does not collide with any published
// business. On collision a short random suffix is appended; generation
// never fails the promotion.
func uniqueSlug(ctx context.Context, s Store, name, city string) (string, error) {
	slug := slugify(name, city)
	if slug == "" {
		slug = "business"
	}

	exists, err := s.SlugExists(ctx, slug)
	if err != nil {
		return "", err
	}
	if !exists {
		return slug, nil
	}

	for i := 0; i < 5; i++ {
		candidate := slug + "-" + randomSuffix()
		exists, err := s.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	// Six random bytes colliding five times in a row means the RNG is
	// broken; still return something usable.
	return slug + "-" + randomSuffix() + randomSuffix(), nil
}

func randomSuffix() string {
	var buf [3]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
