package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/lukemcguire/wordcrawl/urlutil"
	"golang.org/x/net/html/charset"
)

// FetchConfig holds HTTP renderer configuration.
type FetchConfig struct {
	RequestTimeout time.Duration // Per-attempt timeout (default 10s)
	RateLimit      int           // Requests per second (default 10)
	TargetRTT      time.Duration // Adapt the rate toward this response time (0 = fixed rate)
	UserAgent      string        // User-Agent header and robots.txt agent
	RetryPolicy    RetryPolicy   // Retries for transient failures
	RespectRobots  bool          // Consult robots.txt before each fetch
	MaxBodyBytes   int64         // Response bytes read per page (default 5MB)
}

// DefaultUserAgent identifies the crawler in requests and robots.txt matching.
const DefaultUserAgent = "wordcrawl/1.0 (+https://github.com/lukemcguire/wordcrawl)"

// DefaultFetchConfig returns a FetchConfig with sensible defaults.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		RequestTimeout: 10 * time.Second,
		RateLimit:      10,
		UserAgent:      DefaultUserAgent,
		RetryPolicy:    DefaultRetryPolicy(),
		MaxBodyBytes:   5 * 1024 * 1024,
	}
}

// RendererOption configures an HTTPRenderer.
type RendererOption func(*HTTPRenderer)

// WithHTTPClient replaces the page client.
func WithHTTPClient(client *http.Client) RendererOption {
	return func(r *HTTPRenderer) {
		r.client = client
	}
}

// WithRendererLogger sets the renderer's logger.
func WithRendererLogger(logger *slog.Logger) RendererOption {
	return func(r *HTTPRenderer) {
		r.logger = logger
	}
}

// HTTPRenderer is a Renderer that downloads pages over HTTP and extracts
// their text and anchors from the HTML. It does not execute JavaScript.
// It is safe for concurrent use; Close releases pooled connections.
type HTTPRenderer struct {
	cfg          FetchConfig
	client       *http.Client
	robotsClient *http.Client
	limiter      *AdaptiveLimiter
	robots       *RobotsChecker
	logger       *slog.Logger
}

// NewHTTPRenderer creates an HTTPRenderer. A zero timeout, rate, user agent
// or body limit takes its default; a zero RetryPolicy makes one attempt.
func NewHTTPRenderer(cfg FetchConfig, opts ...RendererOption) *HTTPRenderer {
	defaults := DefaultFetchConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaults.RateLimit
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if cfg.RetryPolicy.MaxRetries < 0 {
		cfg.RetryPolicy.MaxRetries = 0
	}

	r := &HTTPRenderer{
		cfg:     cfg,
		client:  &http.Client{},
		limiter: NewAdaptiveLimiter(cfg.RateLimit, cfg.TargetRTT),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.RespectRobots {
		// Separate client for robots.txt with a shorter timeout.
		r.robotsClient = &http.Client{Transport: r.client.Transport, Timeout: 5 * time.Second}
		r.robots = NewRobotsChecker(r.robotsClient)
	}
	return r
}

// Fetch downloads url and returns its visible text and links.
// Links that pass the host filter with another scheme (ftp, for one) fail
// with ErrUnsupportedScheme without touching the network.
func (r *HTTPRenderer) Fetch(ctx context.Context, url string) (*Page, error) {
	if !urlutil.IsHTTPScheme(url) {
		return nil, fmt.Errorf("%s: %w", url, ErrUnsupportedScheme)
	}
	if r.robots != nil {
		allowed, err := r.robots.Allowed(ctx, url, r.cfg.UserAgent)
		if err != nil {
			r.logger.Debug("robots.txt unavailable, allowing", "url", url, "error", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", url, ErrDisallowed)
		}
	}

	return withRetry(ctx, r.cfg.RetryPolicy, func(ctx context.Context) (*Page, error) {
		return r.fetchOnce(ctx, url)
	})
}

// CurrentRate exposes the limiter's current requests per second.
func (r *HTTPRenderer) CurrentRate() int {
	return r.limiter.CurrentRate()
}

// AverageRTT is the moving average of response times. It only moves when
// the renderer adapts toward a target RTT.
func (r *HTTPRenderer) AverageRTT() time.Duration {
	return r.limiter.CurrentEMA()
}

// Close releases idle connections held by the renderer's clients and drops
// cached robots.txt rules.
func (r *HTTPRenderer) Close() error {
	r.client.CloseIdleConnections()
	if r.robotsClient != nil {
		r.robotsClient.CloseIdleConnections()
	}
	if r.robots != nil {
		r.robots.ClearCache()
	}
	return nil
}

func (r *HTTPRenderer) fetchOnce(ctx context.Context, url string) (page *Page, err error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close response body: %w", closeErr)
		}
	}()
	r.limiter.ObserveRTT(time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		// Stay at half speed for the rest of the crawl.
		slower := max(1, r.limiter.CurrentRate()/2)
		r.limiter.SetRate(slower)
		r.logger.Debug("rate limited by server", "url", url, "rps", slower)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	finalURL := resp.Request.URL
	contentType := resp.Header.Get("Content-Type")
	body := io.LimitReader(resp.Body, r.cfg.MaxBodyBytes)

	switch mediaType(contentType) {
	case "text/html", "application/xhtml+xml", "":
		decoded, err := charset.NewReader(body, contentType)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", url, err)
		}
		text, links, err := ExtractPage(decoded, finalURL)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", url, err)
		}
		return &Page{URL: finalURL.String(), Text: text, Links: links}, nil

	case "text/plain":
		decoded, err := charset.NewReader(body, contentType)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", url, err)
		}
		raw, err := io.ReadAll(decoded)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", url, err)
		}
		return &Page{URL: finalURL.String(), Text: collapseWhitespace(string(raw))}, nil

	default:
		// Binary or non-document content has no visible text.
		r.logger.Debug("non-document content", "url", url, "content_type", contentType)
		return &Page{URL: finalURL.String()}, nil
	}
}

// mediaType returns the lowercased media type of a Content-Type header.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}
