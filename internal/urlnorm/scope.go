package urlnorm

import (
	"net/url"
	"strings"
)

// ScopeConfig carries the in-scope predicates from spec.md §4.A.
type ScopeConfig struct {
	AllowedDomains          []string
	ExcludedSitemapSections []string
	ExcludedURLPrefixes     []string
}

// InScope reports whether canonical satisfies every in-scope predicate:
// host in AllowedDomains, http(s) scheme, no excluded-section substring
// match on the path, and no excluded-prefix match.
func InScope(canonical string, cfg ScopeConfig) bool {
	u, err := url.Parse(canonical)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if !hostAllowed(u.Host, cfg.AllowedDomains) {
		return false
	}

	lowerPath := strings.ToLower(u.Path)
	for _, section := range cfg.ExcludedSitemapSections {
		if section != "" && strings.Contains(lowerPath, strings.ToLower(section)) {
			return false
		}
	}

	for _, prefix := range cfg.ExcludedURLPrefixes {
		if prefix != "" && strings.HasPrefix(canonical, prefix) {
			return false
		}
	}

	return true
}

func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	host = strings.ToLower(host)
	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return true
		}
	}
	return false
}

// Host returns the lowercase host component of canonical, or "" if it
// cannot be parsed.
func Host(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
