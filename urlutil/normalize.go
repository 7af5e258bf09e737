// Package urlutil holds the link policy of the crawler: trailing-slash
// normalization and the same-host/exclusion filter applied to links
// discovered on a page.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Normalize strips exactly one trailing slash from rawURL.
// URLs are otherwise treated as opaque strings: scheme, host and path case
// are preserved and fragments are left in place.
//
// Normalize is idempotent in the sense that matters for the visited set:
// "https://x.test/a/" and "https://x.test/a" map to the same key.
func Normalize(rawURL string) string {
	return strings.TrimSuffix(rawURL, "/")
}

// HostOf returns the hostname (without port) of the seed URL's authority.
func HostOf(seedURL string) (string, error) {
	if seedURL == "" {
		return "", errors.New("cannot derive host from empty URL")
	}

	parsed, err := url.Parse(seedURL)
	if err != nil {
		return "", fmt.Errorf("parse seed URL %q: %w", seedURL, err)
	}

	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("seed URL %q has no host", seedURL)
	}
	return host, nil
}
