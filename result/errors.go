package result

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// ErrorCategory groups skipped pages by why their fetch failed.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	CategoryTLS               ErrorCategory = "tls"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryDisallowed        ErrorCategory = "disallowed"
	CategoryUnknown           ErrorCategory = "unknown"
)

var categoryLabels = map[ErrorCategory]string{
	CategoryTimeout:           "Timeouts",
	CategoryDNSFailure:        "DNS Failures",
	CategoryConnectionRefused: "Connection Refused",
	CategoryTLS:               "TLS Failures",
	Category4xx:               "Client Errors (4xx)",
	Category5xx:               "Server Errors (5xx)",
	CategoryDisallowed:        "Disallowed by robots.txt",
}

// ClassifyError maps a fetch failure to a category. statusCode is 0 when no
// response arrived; disallowed marks a robots.txt refusal and wins over both.
func ClassifyError(err error, statusCode int, disallowed bool) ErrorCategory {
	switch {
	case disallowed:
		return CategoryDisallowed
	case statusCode >= 500:
		return Category5xx
	case statusCode >= 400:
		return Category4xx
	case err == nil:
		return CategoryUnknown
	}
	return classifyTransportError(err)
}

func classifyTransportError(err error) ErrorCategory {
	var (
		dnsErr      *net.DNSError
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		netErr      net.Error
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &dnsErr):
		return CategoryDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return CategoryConnectionRefused
	case errors.As(err, &verifyErr), errors.As(err, &unknownAuth), errors.As(err, &hostnameErr):
		return CategoryTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return CategoryTimeout
	}
	return CategoryUnknown
}

// FormatCategory returns the heading used for a category in reports.
func FormatCategory(cat ErrorCategory) string {
	if label, ok := categoryLabels[cat]; ok {
		return label
	}
	return "Other Errors"
}
