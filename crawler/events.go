package crawler

// CrawlEvent reports progress after each fetched or skipped page.
type CrawlEvent struct {
	URL     string
	Depth   int
	Fetched int    // Pages fetched so far
	Skipped int    // Pages skipped so far
	Queued  int    // Frontier length after this page was expanded
	Error   string // Non-empty when the page was skipped
}
