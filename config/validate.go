package config

import (
	"regexp"
	"strconv"
	"strings"
)

// urlPattern accepts http, https and ftp URLs with a plausible host.
var urlPattern = regexp.MustCompile(`(?i)^(https?|ftp)://[^\s/$.?#].[^\s]*$`)

// IsValidURL reports whether s looks like an absolute http(s) or ftp URL.
func IsValidURL(s string) bool {
	return urlPattern.MatchString(s)
}

// ParseDepth reads a depth the way the CLI always has: leading whitespace
// and a sign are accepted and parsing stops at the first non-digit, so "3x"
// is 3. The result must be positive.
func ParseDepth(s string) (int, error) {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, ErrInvalidDepth
	}

	depth, err := strconv.Atoi(s[:end])
	if err != nil || depth <= 0 {
		return 0, ErrInvalidDepth
	}
	return depth, nil
}
