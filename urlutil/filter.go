package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// excludedSubstrings disqualify a link wherever they appear. "malito" guards
// against a common misspelling of the mailto scheme.
var excludedSubstrings = []string{"#", "mailto", "malito"}

// Policy decides which discovered links are eligible for the frontier.
//
// The default same-host check is a substring test: a link passes when its
// text contains Host anywhere. Subdomains pass, and so do unrelated URLs that
// merely embed the host (e.g. "evil-site.com.attacker.net" for "site.com").
// StrictHost tightens this to hostname equality or subdomain match, which
// narrows crawl scope.
type Policy struct {
	Host       string
	StrictHost bool
}

// Filter applies the default (substring) policy for host to rawLinks.
func Filter(rawLinks []string, host string) []string {
	return Policy{Host: host}.Apply(rawLinks)
}

// Apply returns the eligible links in input order, each normalized.
// It has no side effects; duplicates in rawLinks are kept and left to the
// caller's visited set.
func (p Policy) Apply(rawLinks []string) []string {
	eligible := make([]string, 0, len(rawLinks))
	for _, link := range rawLinks {
		if !p.Eligible(link) {
			continue
		}
		eligible = append(eligible, Normalize(link))
	}
	return eligible
}

// Eligible reports whether a single raw link passes the policy.
func (p Policy) Eligible(link string) bool {
	if !strings.Contains(link, p.Host) {
		return false
	}
	if p.StrictHost && !IsSameDomain(link, p.Host) {
		return false
	}
	if strings.HasSuffix(link, ".pdf") {
		return false
	}
	for _, keyword := range excludedSubstrings {
		if strings.Contains(link, keyword) {
			return false
		}
	}
	return true
}

// IsSameDomain checks if targetURL belongs to the same domain as baseHost.
// Subdomains are considered same-domain (e.g., blog.example.com matches example.com).
func IsSameDomain(targetURL string, baseHost string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	baseHost = strings.ToLower(baseHost)

	return host == baseHost || strings.HasSuffix(host, "."+baseHost)
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves a possibly-relative ref URL against a base URL.
// If ref is absolute, it is returned as-is.
func ResolveReference(base *url.URL, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	return base.ResolveReference(refURL).String(), nil
}
