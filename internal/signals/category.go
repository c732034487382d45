package signals

import "strings"

// categoryKeywords maps directory categories to the phrases that imply them.
// First match in declaration order wins, so more specific categories come
// before generic ones.
var categoryKeywords = []struct {
	category string
	phrases  []string
}{
	{"butcher", []string{"meat market", "butcher", "meats", "slaughter"}},
	{"grocery", []string{"grocery", "market", "supermarket", "food store"}},
	{"restaurant", []string{"restaurant", "grill", "kitchen", "cuisine", "cafe", "eatery", "shawarma", "kabob", "kebab", "biryani"}},
	{"bakery", []string{"bakery", "sweets", "pastry", "desserts"}},
	{"clothing", []string{"clothing", "apparel", "hijab", "modest wear", "abaya", "thobe"}},
	{"bookstore", []string{"books", "bookstore", "quran"}},
	{"services", []string{"travel", "finance", "insurance", "realty", "law", "clinic", "pharmacy"}},
}

// serviceKeywords are amenity phrases surfaced as a service list.
var serviceKeywords = []string{
	"catering", "delivery", "takeout", "dine-in", "wholesale",
	"online ordering", "curbside", "private events",
}

// InferCategory guesses a directory category from free text. Returns an
// empty string when nothing matches; the reviewer assigns one by hand.
func InferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		for _, p := range c.phrases {
			if strings.Contains(lower, p) {
				return c.category
			}
		}
	}
	return ""
}

// InferServices extracts amenity mentions from free text, preserving
// declaration order and de-duplicating.
func InferServices(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, s := range serviceKeywords {
		if strings.Contains(lower, s) {
			out = append(out, s)
		}
	}
	return out
}
