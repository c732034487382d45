package normalize

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped from scraped website URLs.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"mc_cid":  true,
	"mc_eid":  true,
}

// NormalizeWebsite canonicalizes a scraped website URL: ensures a scheme
// (https when absent), lowercases the host, and strips tracking parameters
// and fragments. Input that does not parse as a URL is returned trimmed.
func NormalizeWebsite(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingParams[key] || strings.HasPrefix(key, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimSuffix(u.String(), "/")
}
