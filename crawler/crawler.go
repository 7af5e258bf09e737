// Package crawler implements a bounded breadth-first crawl that collects the
// visible text of every page reachable from a seed URL within a maximum
// depth. Pages are fetched through a Renderer; the engine owns the frontier,
// the visited set and the per-URL depth map.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/wordcrawl/result"
)

// ErrorPolicy selects how the engine reacts to a failed fetch.
type ErrorPolicy string

const (
	// FailFast aborts the crawl on the first fetch error.
	FailFast ErrorPolicy = "fail-fast"
	// SkipAndContinue records the failed URL and carries on.
	SkipAndContinue ErrorPolicy = "skip"
)

// errCrawlDeadline is the cancellation cause for Config.Deadline.
var errCrawlDeadline = errors.New("crawl deadline reached")

// Config holds engine configuration. The zero value crawls sequentially with
// fail-fast error handling and no budgets.
type Config struct {
	Concurrency     int           // Parallel fetches within one BFS layer (<= 1 means sequential)
	ErrorPolicy     ErrorPolicy   // Fetch failure handling (default FailFast)
	MaxPages        int           // Stop after this many pages fetched or skipped (0 = unlimited)
	Deadline        time.Duration // Stop after this much wall time (0 = none)
	MemoryLimitMB   int64         // Stop when heap use is critical against this limit (0 = none)
	StrictHost      bool          // Require hostname match in addition to the substring check
	ExpectedURLs    uint          // Sizing hint for the visited set
	VisitedSpillDir string        // Directory for the visited set's mmap snapshot ("" = off)
}

// PageRecord is a fetched page as handed to a Recorder.
type PageRecord struct {
	URL       string
	Depth     int
	Text      string
	Duplicate bool
}

// Recorder receives crawl output as it is produced.
type Recorder interface {
	StartSession(ctx context.Context, sessionID, seedURL string, maxDepth int) error
	RecordPage(ctx context.Context, sessionID string, page PageRecord) error
	RecordSkip(ctx context.Context, sessionID string, skipped result.SkippedPage) error
	FinishSession(ctx context.Context, sessionID string, stats result.CrawlStats) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress streams a CrawlEvent per processed page to ch.
func WithProgress(ch chan<- CrawlEvent) Option {
	return func(e *Engine) {
		e.progressCh = ch
	}
}

// WithRecorder sends every page and skip to rec.
func WithRecorder(rec Recorder) Option {
	return func(e *Engine) {
		e.recorder = rec
	}
}

// Engine drives a Renderer through a bounded breadth-first traversal.
// An Engine may run several crawls, concurrently or not; each Run owns a
// private Session.
type Engine struct {
	cfg        Config
	renderer   Renderer
	logger     *slog.Logger
	progressCh chan<- CrawlEvent
	recorder   Recorder
}

// New creates an Engine that fetches pages through renderer.
func New(renderer Renderer, cfg Config, opts ...Option) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ErrorPolicy == "" {
		cfg.ErrorPolicy = FailFast
	}

	e := &Engine{
		cfg:      cfg,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Crawl returns the distinct texts of every page visited from seedURL within
// maxDepth hops.
func (e *Engine) Crawl(ctx context.Context, seedURL string, maxDepth int) ([]string, error) {
	res, err := e.Run(ctx, seedURL, maxDepth)
	if err != nil {
		return nil, err
	}
	return res.Texts, nil
}

// fetchOutcome is the result of fetching one frontier item.
type fetchOutcome struct {
	page *Page
	err  error
}

// Run crawls from seedURL and returns the full result.
//
// A fetch error aborts the crawl under FailFast. Under SkipAndContinue the
// URL is recorded in Result.Skipped. A robots.txt refusal is always recorded
// as skipped. When a budget (MaxPages, Deadline, MemoryLimitMB) ends the crawl
// the partial result is returned with Stats.Truncated set. Cancellation of
// ctx by the caller returns an error and no result.
func (e *Engine) Run(ctx context.Context, seedURL string, maxDepth int) (*result.Result, error) {
	start := time.Now()

	session, err := NewSession(seedURL, maxDepth, e.cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			e.logger.Warn("release session", "session", session.ID, "error", closeErr)
		}
	}()
	if path := session.visited.SpillPath(); path != "" {
		// Left behind only if the process dies before Close.
		e.logger.Debug("visited set snapshot", "session", session.ID, "path", path)
	}

	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, e.cfg.Deadline, errCrawlDeadline)
		defer cancel()
	}

	var watcher *MemoryWatcher
	if e.cfg.MemoryLimitMB > 0 {
		watcher = NewMemoryWatcher(e.cfg.MemoryLimitMB)
		watcher.OnChange(func(level ThrottleLevel) {
			e.logger.Warn("memory pressure changed", "session", session.ID, "level", level.String())
		})
		defer watcher.Restore()
	}

	if e.recorder != nil {
		if err := e.recorder.StartSession(ctx, session.ID, session.SeedURL, maxDepth); err != nil {
			return nil, fmt.Errorf("record session start: %w", err)
		}
	}

	e.logger.Info("crawl started",
		"session", session.ID,
		"seed", session.SeedURL,
		"host", session.Host,
		"max_depth", maxDepth,
		"concurrency", e.cfg.Concurrency,
	)

	stop := result.StopNone
	for session.frontier.Len() > 0 {
		if stop = e.budgetStop(session, watcher); stop != result.StopNone {
			break
		}
		if ctx.Err() != nil {
			if stop = e.interruption(ctx); stop == result.StopNone {
				return nil, fmt.Errorf("crawl interrupted: %w", ctx.Err())
			}
			break
		}

		batch := session.frontier.PopLayer(e.batchSize(session))
		outcomes := e.fetchBatch(ctx, batch)

		for i, item := range batch {
			outcome := outcomes[i]
			if outcome.err != nil {
				if ctx.Err() != nil {
					// Fetch cut short by cancellation; the loop head decides.
					continue
				}
				if err := e.handleFailure(ctx, session, item, outcome.err); err != nil {
					return nil, err
				}
				continue
			}
			if err := e.handlePage(ctx, session, item, outcome.page); err != nil {
				return nil, err
			}
		}
	}

	if stop == result.StopNone && ctx.Err() != nil {
		// The final batch may have been interrupted with nothing left queued.
		if stop = e.interruption(ctx); stop == result.StopNone {
			return nil, fmt.Errorf("crawl interrupted: %w", ctx.Err())
		}
	}

	res := &result.Result{
		SessionID: session.ID,
		SeedURL:   session.SeedURL,
		MaxDepth:  maxDepth,
		Texts:     session.texts.Texts(),
		Pages:     session.pages,
		Skipped:   session.skipped,
		Stats: result.CrawlStats{
			Fetched:    len(session.pages),
			Skipped:    len(session.skipped),
			Enqueued:   session.visited.Len(),
			DeepestHop: session.deepest,
			Truncated:  stop != result.StopNone,
			StopReason: stop,
			Duration:   time.Since(start),
		},
	}

	// Recorder writes outlive a deadline stop so partial results are archived.
	if e.recorder != nil {
		if err := e.recorder.FinishSession(context.WithoutCancel(ctx), session.ID, res.Stats); err != nil {
			return nil, fmt.Errorf("record session finish: %w", err)
		}
	}

	e.logger.Info("crawl finished",
		"session", session.ID,
		"fetched", res.Stats.Fetched,
		"skipped", res.Stats.Skipped,
		"texts", len(res.Texts),
		"stop_reason", string(stop),
		"duration", res.Stats.Duration,
	)
	return res, nil
}

// batchSize is how many same-depth items to fetch before expanding.
func (e *Engine) batchSize(session *Session) int {
	size := e.cfg.Concurrency
	if e.cfg.MaxPages > 0 {
		size = min(size, e.cfg.MaxPages-session.processed())
	}
	return size
}

// budgetStop reports which page or memory budget, if any, ends the crawl.
func (e *Engine) budgetStop(session *Session, watcher *MemoryWatcher) result.StopReason {
	if e.cfg.MaxPages > 0 && session.processed() >= e.cfg.MaxPages {
		return result.StopMaxPages
	}
	if watcher != nil {
		if _, level := watcher.Check(); level == ThrottleCritical {
			return result.StopMemory
		}
	}
	return result.StopNone
}

// interruption maps a done context to a stop reason. Only the engine's own
// deadline is a budget; any other cause is a caller cancellation.
func (e *Engine) interruption(ctx context.Context) result.StopReason {
	if errors.Is(context.Cause(ctx), errCrawlDeadline) {
		return result.StopDeadline
	}
	return result.StopNone
}

// fetchBatch fetches every item of a same-depth batch, at most Concurrency
// at a time. Outcomes are aligned with batch.
func (e *Engine) fetchBatch(ctx context.Context, batch []FrontierItem) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(batch))
	if len(batch) == 1 {
		outcomes[0] = e.fetch(ctx, batch[0])
		return outcomes
	}

	var group errgroup.Group
	group.SetLimit(e.cfg.Concurrency)
	for i, item := range batch {
		group.Go(func() error {
			outcomes[i] = e.fetch(ctx, item)
			return nil
		})
	}
	_ = group.Wait()
	return outcomes
}

func (e *Engine) fetch(ctx context.Context, item FrontierItem) fetchOutcome {
	e.logger.Debug("fetching", "url", item.Target(), "depth", item.Depth)
	page, err := e.renderer.Fetch(ctx, item.Target())
	if err == nil && page == nil {
		page = &Page{URL: item.Target()}
	}
	return fetchOutcome{page: page, err: err}
}

// handlePage collects a fetched page and expands its links.
func (e *Engine) handlePage(ctx context.Context, session *Session, item FrontierItem, page *Page) error {
	record := session.collect(item, page.Text)

	if e.recorder != nil {
		err := e.recorder.RecordPage(context.WithoutCancel(ctx), session.ID, PageRecord{
			URL:       item.Target(),
			Depth:     item.Depth,
			Text:      page.Text,
			Duplicate: record.Duplicate,
		})
		if err != nil {
			return fmt.Errorf("record page %s: %w", item.Target(), err)
		}
	}

	if err := session.expand(item.Depth, page.Links); err != nil {
		return fmt.Errorf("expand %s: %w", item.Target(), err)
	}

	e.logger.Debug("fetched",
		"url", item.Target(),
		"depth", item.Depth,
		"links", len(page.Links),
		"queued", session.frontier.Len(),
	)
	e.emit(ctx, session, item, "")
	return nil
}

// handleFailure applies the error policy to a failed fetch.
func (e *Engine) handleFailure(ctx context.Context, session *Session, item FrontierItem, fetchErr error) error {
	disallowed := errors.Is(fetchErr, ErrDisallowed)
	if !disallowed && e.cfg.ErrorPolicy != SkipAndContinue {
		return fmt.Errorf("fetch %s: %w", item.Target(), fetchErr)
	}

	statusCode := 0
	var statusErr *StatusError
	if errors.As(fetchErr, &statusErr) {
		statusCode = statusErr.StatusCode
	}

	skipped := result.SkippedPage{
		URL:           item.Target(),
		Depth:         item.Depth,
		StatusCode:    statusCode,
		Error:         fetchErr.Error(),
		ErrorCategory: result.ClassifyError(fetchErr, statusCode, disallowed),
	}
	session.skipped = append(session.skipped, skipped)

	e.logger.Warn("page skipped",
		"url", item.Target(),
		"depth", item.Depth,
		"category", string(skipped.ErrorCategory),
		"error", fetchErr,
	)

	if e.recorder != nil {
		if err := e.recorder.RecordSkip(context.WithoutCancel(ctx), session.ID, skipped); err != nil {
			return fmt.Errorf("record skip %s: %w", item.Target(), err)
		}
	}

	e.emit(ctx, session, item, skipped.Error)
	return nil
}

func (e *Engine) emit(ctx context.Context, session *Session, item FrontierItem, errMsg string) {
	if e.progressCh == nil {
		return
	}
	evt := CrawlEvent{
		URL:     item.Target(),
		Depth:   item.Depth,
		Fetched: len(session.pages),
		Skipped: len(session.skipped),
		Queued:  session.frontier.Len(),
		Error:   errMsg,
	}
	select {
	case e.progressCh <- evt:
	case <-ctx.Done():
	}
}
