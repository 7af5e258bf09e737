package crawler

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lukemcguire/wordcrawl/result"
	"github.com/lukemcguire/wordcrawl/urlutil"
)

// ErrDepthRewrite is returned when a URL's depth would be recorded twice.
var ErrDepthRewrite = errors.New("depth already recorded")

// FrontierItem is a URL waiting to be fetched, with its discovery depth.
// URL is the normalized visited key. RawURL, when set, is the address to
// request instead; the seed keeps the form the caller gave.
type FrontierItem struct {
	URL    string
	RawURL string
	Depth  int
}

// Target returns the address to request for the item.
func (i FrontierItem) Target() string {
	if i.RawURL != "" {
		return i.RawURL
	}
	return i.URL
}

// Frontier is a FIFO queue of URLs awaiting processing.
type Frontier struct {
	items []FrontierItem
	head  int
}

// Push appends item to the tail of the queue.
func (f *Frontier) Push(item FrontierItem) {
	f.items = append(f.items, item)
}

// Pop removes and returns the head of the queue.
func (f *Frontier) Pop() (FrontierItem, bool) {
	if f.head >= len(f.items) {
		return FrontierItem{}, false
	}
	item := f.items[f.head]
	f.items[f.head] = FrontierItem{}
	f.head++
	f.compact()
	return item, true
}

// PopLayer removes up to limit items from the head that share the head's
// depth. Because the queue is filled in BFS order, depths are non-decreasing
// from head to tail.
func (f *Frontier) PopLayer(limit int) []FrontierItem {
	if limit <= 0 || f.head >= len(f.items) {
		return nil
	}
	depth := f.items[f.head].Depth
	layer := make([]FrontierItem, 0, min(limit, f.Len()))
	for len(layer) < limit && f.head < len(f.items) && f.items[f.head].Depth == depth {
		item, _ := f.Pop()
		layer = append(layer, item)
	}
	return layer
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	return len(f.items) - f.head
}

// compact drops the consumed prefix once it dominates the backing array.
func (f *Frontier) compact() {
	if f.head < 64 || f.head*2 < len(f.items) {
		return
	}
	remaining := copy(f.items, f.items[f.head:])
	clear(f.items[remaining:])
	f.items = f.items[:remaining]
	f.head = 0
}

// DepthMap records the depth at which each URL was first discovered.
// Entries are written once and never change.
type DepthMap map[string]int

// Set records depth for url. It fails if url already has a depth.
func (m DepthMap) Set(url string, depth int) error {
	if existing, ok := m[url]; ok {
		return fmt.Errorf("%w: %s at %d (attempted %d)", ErrDepthRewrite, url, existing, depth)
	}
	m[url] = depth
	return nil
}

// Depth returns the recorded depth of url.
func (m DepthMap) Depth(url string) (int, bool) {
	depth, ok := m[url]
	return depth, ok
}

// TextSet collects distinct page texts in insertion order.
type TextSet struct {
	index map[string]int
	texts []string
}

// NewTextSet returns an empty TextSet.
func NewTextSet() *TextSet {
	return &TextSet{index: make(map[string]int)}
}

// Add stores text unless an identical text is already present.
// It returns the text's position and whether it was newly added.
func (s *TextSet) Add(text string) (int, bool) {
	if i, ok := s.index[text]; ok {
		return i, false
	}
	s.index[text] = len(s.texts)
	s.texts = append(s.texts, text)
	return len(s.texts) - 1, true
}

// Len returns the number of distinct texts.
func (s *TextSet) Len() int {
	return len(s.texts)
}

// Texts returns a copy of the collected texts.
func (s *TextSet) Texts() []string {
	out := make([]string, len(s.texts))
	copy(out, s.texts)
	return out
}

// Session is the state of one crawl: frontier, visited set, depth map and
// collected texts. It belongs to a single Run and is never shared.
type Session struct {
	ID       string
	SeedURL  string
	Host     string
	MaxDepth int

	policy   urlutil.Policy
	frontier Frontier
	visited  *VisitedSet
	depths   DepthMap
	texts    *TextSet
	pages    []result.PageResult
	skipped  []result.SkippedPage
	deepest  int
}

// NewSession prepares a session for seedURL and enqueues the seed at depth 0.
// The seed is fetched exactly as given, but its visited key is normalized
// like any discovered link so that a page linking back to the seed does not
// enqueue it a second time.
func NewSession(seedURL string, maxDepth int, cfg Config) (*Session, error) {
	host, err := urlutil.HostOf(seedURL)
	if err != nil {
		return nil, fmt.Errorf("derive host: %w", err)
	}

	visited, err := NewVisitedSet(VisitedOptions{
		ExpectedURLs: cfg.ExpectedURLs,
		SpillDir:     cfg.VisitedSpillDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create visited set: %w", err)
	}

	s := &Session{
		ID:       uuid.NewString(),
		SeedURL:  seedURL,
		Host:     host,
		MaxDepth: maxDepth,
		policy:   urlutil.Policy{Host: host, StrictHost: cfg.StrictHost},
		visited:  visited,
		depths:   make(DepthMap),
		texts:    NewTextSet(),
	}

	seed := FrontierItem{URL: urlutil.Normalize(seedURL), RawURL: seedURL}
	if _, err := s.enqueue(seed); err != nil {
		_ = visited.Close()
		return nil, err
	}
	return s, nil
}

// enqueue marks item visited, records its depth and pushes it to the
// frontier. It reports false when item.URL was already visited.
func (s *Session) enqueue(item FrontierItem) (bool, error) {
	if !s.visited.VisitIfNew(item.URL) {
		return false, nil
	}
	if err := s.depths.Set(item.URL, item.Depth); err != nil {
		return false, err
	}
	s.frontier.Push(item)
	return true, nil
}

// expand enqueues the eligible, unseen links discovered on a page at depth.
// Pages at MaxDepth are not expanded.
func (s *Session) expand(depth int, rawLinks []string) error {
	if depth >= s.MaxDepth {
		return nil
	}
	for _, link := range s.policy.Apply(rawLinks) {
		if _, err := s.enqueue(FrontierItem{URL: link, Depth: depth + 1}); err != nil {
			return err
		}
	}
	return nil
}

// collect stores a fetched page's text and returns its record.
func (s *Session) collect(item FrontierItem, text string) result.PageResult {
	idx, added := s.texts.Add(text)
	page := result.PageResult{
		URL:        item.Target(),
		Depth:      item.Depth,
		TextIndex:  idx,
		TextLength: len(text),
		Duplicate:  !added,
	}
	s.pages = append(s.pages, page)
	s.deepest = max(s.deepest, item.Depth)
	return page
}

// Visited reports whether url has ever been enqueued.
func (s *Session) Visited(url string) bool {
	return s.visited.Contains(url)
}

// Depth returns the recorded discovery depth of url.
func (s *Session) Depth(url string) (int, bool) {
	return s.depths.Depth(url)
}

// processed returns the number of pages fetched or skipped so far.
func (s *Session) processed() int {
	return len(s.pages) + len(s.skipped)
}

// Close releases the visited set.
func (s *Session) Close() error {
	return s.visited.Close()
}
