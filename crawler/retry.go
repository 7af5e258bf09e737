package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// RetryPolicy configures retry behavior for failed fetches.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (2 = 3 total attempts)
	BaseDelay  time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Maximum backoff cap
}

// DefaultRetryPolicy returns 2 retries, 1s base delay and a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// withRetry runs attempt until it succeeds, fails permanently or the policy
// is exhausted, doubling the delay between attempts.
func withRetry(ctx context.Context, policy RetryPolicy, attempt func(context.Context) (*Page, error)) (*Page, error) {
	backoff := policy.BaseDelay
	var lastErr error
	attempts := 0

	for try := 0; try <= policy.MaxRetries; try++ {
		if try > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("retry wait: %w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
			backoff = min(backoff*2, policy.MaxDelay)
		}

		attempts++
		page, err := attempt(ctx)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
}

// shouldRetry reports whether err is transient: network failures, timeouts,
// 429 and 5xx responses. Other 4xx responses and robots refusals are final.
func shouldRetry(err error) bool {
	if err == nil || errors.Is(err, ErrDisallowed) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
