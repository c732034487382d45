package scraper

import (
	"strings"
)

// RobotsRules holds the Disallow/Allow directives that apply to our agent.
// Only path-prefix matching is implemented; wildcard patterns in the rules
// are matched on their literal prefix before the first '*'.
type RobotsRules struct {
	disallow []string
	allow    []string
}

// ParseRobots extracts the rule group relevant to userAgent from a
// robots.txt body. Rules from a group matching our agent token take
// precedence over the '*' group.
func ParseRobots(body, userAgent string) *RobotsRules {
	token := agentToken(userAgent)

	wildcard := &RobotsRules{}
	specific := &RobotsRules{}
	specificSeen := false

	var current []*RobotsRules
	for _, line := range strings.Split(body, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			agent := strings.ToLower(value)
			switch {
			case agent == "*":
				current = []*RobotsRules{wildcard}
			case token != "" && strings.Contains(token, agent):
				current = []*RobotsRules{specific}
				specificSeen = true
			default:
				current = nil
			}
		case "disallow":
			for _, r := range current {
				if value != "" {
					r.disallow = append(r.disallow, value)
				}
			}
		case "allow":
			for _, r := range current {
				if value != "" {
					r.allow = append(r.allow, value)
				}
			}
		}
	}

	if specificSeen {
		return specific
	}
	return wildcard
}

// Allowed reports whether the given path may be fetched. Allow directives
// override Disallow when both match; the longest match wins per the de
// facto convention.
func (r *RobotsRules) Allowed(path string) bool {
	if path == "" {
		path = "/"
	}

	disallowLen := longestPrefix(r.disallow, path)
	if disallowLen < 0 {
		return true
	}
	allowLen := longestPrefix(r.allow, path)
	return allowLen >= disallowLen
}

func longestPrefix(rules []string, path string) int {
	best := -1
	for _, rule := range rules {
		prefix := rule
		if i := strings.Index(prefix, "*"); i >= 0 {
			prefix = prefix[:i]
		}
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}

// agentToken extracts the product token from a User-Agent header value,
// e.g. "scout-cli/1.0 (+https://...)" yields "scout-cli".
func agentToken(ua string) string {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if i := strings.IndexAny(ua, "/ "); i >= 0 {
		ua = ua[:i]
	}
	return ua
}
