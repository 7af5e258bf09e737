package crawler

import (
	"context"
	"errors"
	"fmt"
)

// ErrDisallowed is returned by a Renderer when robots.txt forbids a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// ErrUnsupportedScheme is returned for URLs that are not http or https.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Page is what a Renderer extracts from one URL.
type Page struct {
	URL   string   // Final URL after redirects
	Text  string   // Visible text of the page body
	Links []string // Raw hyperlinks found on the page, absolute where resolvable
}

// Renderer fetches a page and extracts its text and links. Fetch blocks until
// the page content is available or the context ends.
type Renderer interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, url string) (*Page, error)

// Fetch calls f(ctx, url).
func (f RendererFunc) Fetch(ctx context.Context, url string) (*Page, error) {
	return f(ctx, url)
}

// StatusError reports an HTTP response with a status code >= 400.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
