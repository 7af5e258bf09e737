package crawler

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// minRateFloor is the slowest the adaptive limiter will go, in requests per second.
	minRateFloor = 1.0

	// maxRateCeiling caps the request rate.
	maxRateCeiling = 100.0

	// emaAlpha weights a new RTT sample in the moving average.
	emaAlpha = 0.2

	// recoveryFactor raises the rate after a fast response.
	recoveryFactor = 1.1

	// backoffFactor bounds how far one slow response can cut the rate.
	backoffFactor = 0.5
)

// AdaptiveLimiter paces page fetches. In adaptive mode it tracks an
// exponential moving average of response times and steers the rate toward a
// target RTT; in fixed mode it holds the configured rate.
type AdaptiveLimiter struct {
	mu          sync.RWMutex
	limiter     *rate.Limiter
	targetRTT   time.Duration
	emaRTT      time.Duration
	currentRate float64
	fixed       bool
}

// NewAdaptiveLimiter creates a limiter starting at rps requests per second.
// A zero targetRTT yields a fixed-rate limiter.
func NewAdaptiveLimiter(rps int, targetRTT time.Duration) *AdaptiveLimiter {
	initial := clampRate(float64(rps))
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(rate.Limit(initial), burstFor(initial)),
		targetRTT:   targetRTT,
		emaRTT:      targetRTT,
		currentRate: initial,
		fixed:       targetRTT <= 0,
	}
}

// Wait blocks until the next request may start or ctx is done.
// It is safe for concurrent use.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// ObserveRTT feeds one response time into the rate controller.
func (a *AdaptiveLimiter) ObserveRTT(rtt time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fixed || rtt <= 0 {
		return
	}

	a.emaRTT = time.Duration(emaAlpha*float64(rtt) + (1-emaAlpha)*float64(a.emaRTT))

	ratio := float64(a.targetRTT) / float64(a.emaRTT)
	next := a.currentRate * recoveryFactor
	if ratio < 1 {
		next = math.Max(a.currentRate*ratio, a.currentRate*backoffFactor)
	}
	next = clampRate(next)

	if math.Abs(next-a.currentRate) > 0.1 {
		a.setLocked(next)
	}
}

// SetRate pins the limiter to rps and disables adaptation.
func (a *AdaptiveLimiter) SetRate(rps int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fixed = true
	a.setLocked(clampRate(float64(rps)))
}

// CurrentRate returns the current rate in requests per second, rounded.
func (a *AdaptiveLimiter) CurrentRate() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int(math.Round(a.currentRate))
}

// CurrentEMA returns the moving average of observed response times.
func (a *AdaptiveLimiter) CurrentEMA() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emaRTT
}

func (a *AdaptiveLimiter) setLocked(rps float64) {
	a.currentRate = rps
	a.limiter.SetLimit(rate.Limit(rps))
	a.limiter.SetBurst(burstFor(rps))
}

func burstFor(rps float64) int {
	return int(math.Ceil(rps))
}

func clampRate(rps float64) float64 {
	return math.Min(math.Max(rps, minRateFloor), maxRateCeiling)
}
