package crawler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lukemcguire/wordcrawl/crawler"
	"github.com/lukemcguire/wordcrawl/result"
	"github.com/lukemcguire/wordcrawl/wordcount"
)

// fakeSite is a scripted Renderer keyed by normalized URL.
type fakeSite struct {
	pages map[string]crawler.Page
	errs  map[string]error
	block map[string]bool

	mu    sync.Mutex
	calls []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages: make(map[string]crawler.Page),
		errs:  make(map[string]error),
		block: make(map[string]bool),
	}
}

func (s *fakeSite) page(url, text string, links ...string) *fakeSite {
	s.pages[url] = crawler.Page{URL: url, Text: text, Links: links}
	return s
}

func (s *fakeSite) Fetch(ctx context.Context, url string) (*crawler.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, url)
	s.mu.Unlock()

	if s.block[url] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := s.errs[url]; ok {
		return nil, err
	}
	page, ok := s.pages[url]
	if !ok {
		return nil, &crawler.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return &page, nil
}

func (s *fakeSite) fetched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

func pageURLs(res *result.Result) []string {
	urls := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		urls[i] = p.URL
	}
	return urls
}

func TestCrawlCountsWordAcrossPages(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "Kayako Kayako", "https://site.test/about").
		page("https://site.test/about", "no match")

	texts, err := crawler.New(site, crawler.Config{}).Crawl(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	if !slices.Equal(texts, []string{"Kayako Kayako", "no match"}) {
		t.Errorf("texts = %q", texts)
	}
	if got := wordcount.Count(texts, "kayako"); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
}

func TestCrawlVisitsEachURLOnce(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test/a", "https://site.test/b", "https://site.test/a").
		page("https://site.test/a", "a", "https://site.test/b", "https://site.test/", "https://site.test/a").
		page("https://site.test/b", "b", "https://site.test/a", "https://site.test")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 5)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"https://site.test", "https://site.test/a", "https://site.test/b"}
	if got := site.fetched(); !slices.Equal(got, want) {
		t.Errorf("fetched = %v, want %v", got, want)
	}
	if res.Stats.Enqueued != 3 {
		t.Errorf("Enqueued = %d, want 3", res.Stats.Enqueued)
	}
}

func TestCrawlDepthBound(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "d0", "https://site.test/1").
		page("https://site.test/1", "d1", "https://site.test/2").
		page("https://site.test/2", "d2", "https://site.test/3").
		page("https://site.test/3", "d3")

	tests := []struct {
		maxDepth int
		want     []string
	}{
		{0, []string{"d0"}},
		{1, []string{"d0", "d1"}},
		{2, []string{"d0", "d1", "d2"}},
		{10, []string{"d0", "d1", "d2", "d3"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max depth %d", tt.maxDepth), func(t *testing.T) {
			res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", tt.maxDepth)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if !slices.Equal(res.Texts, tt.want) {
				t.Errorf("texts = %v, want %v", res.Texts, tt.want)
			}
			for _, p := range res.Pages {
				if p.Depth > tt.maxDepth {
					t.Errorf("%s fetched at depth %d > %d", p.URL, p.Depth, tt.maxDepth)
				}
			}
		})
	}
}

func TestCrawlAppliesLinkPolicy(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home",
			"https://other.test/x",
			"https://site.test/guide.pdf",
			"https://site.test/page#section",
			"mailto:team@site.test",
			"https://blog.site.test/post/",
		).
		page("https://blog.site.test/post", "post")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 2)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"https://site.test", "https://blog.site.test/post"}
	if got := pageURLs(res); !slices.Equal(got, want) {
		t.Errorf("pages = %v, want %v", got, want)
	}
}

func TestCrawlStrictHost(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test.evil.example/x", "https://www.site.test/y").
		page("https://www.site.test/y", "y").
		page("https://site.test.evil.example/x", "evil")

	loose, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(loose.Pages) != 3 {
		t.Errorf("substring policy fetched %d pages, want 3", len(loose.Pages))
	}

	strict, err := crawler.New(site, crawler.Config{StrictHost: true}).Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := []string{"https://site.test", "https://www.site.test/y"}
	if got := pageURLs(strict); !slices.Equal(got, want) {
		t.Errorf("strict pages = %v, want %v", got, want)
	}
}

func TestCrawlTrailingSlashEquivalence(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test/docs/", "https://site.test/docs").
		page("https://site.test/docs", "docs", "https://site.test/docs/")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 3)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"https://site.test", "https://site.test/docs"}
	if got := site.fetched(); !slices.Equal(got, want) {
		t.Errorf("fetched = %v, want %v", got, want)
	}
	if res.Stats.Enqueued != 2 {
		t.Errorf("Enqueued = %d, want 2", res.Stats.Enqueued)
	}
}

func TestCrawlFetchesSeedAsGiven(t *testing.T) {
	site := newFakeSite().
		page("https://x.test/docs/", "docs", "https://x.test/docs/intro", "https://x.test/docs").
		page("https://x.test/docs/intro", "intro kayako")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://x.test/docs/", 2)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []string{"https://x.test/docs/", "https://x.test/docs/intro"}
	if got := site.fetched(); !slices.Equal(got, want) {
		t.Errorf("fetched = %v, want %v", got, want)
	}
	if res.SeedURL != "https://x.test/docs/" || res.Pages[0].URL != "https://x.test/docs/" {
		t.Errorf("seed recorded as %q / %q, want https://x.test/docs/", res.SeedURL, res.Pages[0].URL)
	}
	if got := wordcount.Count(res.Texts, "kayako"); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestCrawlCycle(t *testing.T) {
	site := newFakeSite().
		page("https://site.test/a", "A", "https://site.test/b").
		page("https://site.test/b", "B", "https://site.test/a")

	texts, err := crawler.New(site, crawler.Config{}).Crawl(context.Background(), "https://site.test/a", 3)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if !slices.Equal(texts, []string{"A", "B"}) {
		t.Errorf("texts = %v, want [A B]", texts)
	}
}

func TestCrawlSelfLoop(t *testing.T) {
	site := newFakeSite().page("https://site.test/", "only", "https://site.test/", "https://site.test")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test/", 4)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(site.fetched()) != 1 || len(res.Texts) != 1 {
		t.Errorf("fetched %v, texts %v; want one of each", site.fetched(), res.Texts)
	}
}

func TestCrawlDeduplicatesTexts(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "same", "https://site.test/copy").
		page("https://site.test/copy", "same")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Texts) != 1 {
		t.Errorf("texts = %v, want one distinct text", res.Texts)
	}
	if len(res.Pages) != 2 || !res.Pages[1].Duplicate || res.Pages[1].TextIndex != 0 {
		t.Errorf("pages = %+v, want second page marked duplicate of text 0", res.Pages)
	}
}

func TestCrawlRecordsDepths(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "0", "https://site.test/a", "https://site.test/b").
		page("https://site.test/a", "1", "https://site.test/b", "https://site.test/c").
		page("https://site.test/b", "1").
		page("https://site.test/c", "2")

	res, err := crawler.New(site, crawler.Config{}).Run(context.Background(), "https://site.test", 2)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := map[string]int{
		"https://site.test":   0,
		"https://site.test/a": 1,
		"https://site.test/b": 1,
		"https://site.test/c": 2,
	}
	for _, p := range res.Pages {
		if p.Depth != want[p.URL] {
			t.Errorf("%s depth = %d, want %d", p.URL, p.Depth, want[p.URL])
		}
	}
	if res.Stats.DeepestHop != 2 {
		t.Errorf("DeepestHop = %d, want 2", res.Stats.DeepestHop)
	}
}

func TestCrawlErrorPolicy(t *testing.T) {
	newSite := func() *fakeSite {
		site := newFakeSite().
			page("https://site.test", "home", "https://site.test/broken", "https://site.test/ok").
			page("https://site.test/ok", "ok")
		site.errs["https://site.test/broken"] = &crawler.StatusError{URL: "https://site.test/broken", StatusCode: 500}
		return site
	}

	t.Run("fail fast", func(t *testing.T) {
		res, err := crawler.New(newSite(), crawler.Config{}).Run(context.Background(), "https://site.test", 1)
		if err == nil {
			t.Fatal("Run() succeeded, want fetch error")
		}
		if res != nil {
			t.Error("fail-fast returned a partial result")
		}
		var statusErr *crawler.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != 500 {
			t.Errorf("error = %v, want wrapped StatusError 500", err)
		}
	})

	t.Run("skip and continue", func(t *testing.T) {
		cfg := crawler.Config{ErrorPolicy: crawler.SkipAndContinue}
		res, err := crawler.New(newSite(), cfg).Run(context.Background(), "https://site.test", 1)
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if !slices.Equal(res.Texts, []string{"home", "ok"}) {
			t.Errorf("texts = %v, want [home ok]", res.Texts)
		}
		if len(res.Skipped) != 1 {
			t.Fatalf("skipped = %+v, want one entry", res.Skipped)
		}
		skipped := res.Skipped[0]
		if skipped.URL != "https://site.test/broken" || skipped.StatusCode != 500 || skipped.ErrorCategory != result.Category5xx {
			t.Errorf("skipped = %+v", skipped)
		}
	})
}

func TestCrawlDisallowedAlwaysSkipped(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test/private").
		page("https://site.test/private", "secret")
	site.errs["https://site.test/private"] = fmt.Errorf("https://site.test/private: %w", crawler.ErrDisallowed)

	res, err := crawler.New(site, crawler.Config{ErrorPolicy: crawler.FailFast}).Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ErrorCategory != result.CategoryDisallowed {
		t.Errorf("skipped = %+v, want one disallowed entry", res.Skipped)
	}
	if slices.Contains(res.Texts, "secret") {
		t.Error("disallowed page text was collected")
	}
}

func TestCrawlMaxPages(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test/a", "https://site.test/b", "https://site.test/c").
		page("https://site.test/a", "a").
		page("https://site.test/b", "b").
		page("https://site.test/c", "c")

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			cfg := crawler.Config{MaxPages: 2, Concurrency: concurrency}
			res, err := crawler.New(site, cfg).Run(context.Background(), "https://site.test", 1)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if !slices.Equal(res.Texts, []string{"home", "a"}) {
				t.Errorf("texts = %v, want [home a]", res.Texts)
			}
			if !res.Stats.Truncated || res.Stats.StopReason != result.StopMaxPages {
				t.Errorf("stats = %+v, want truncated by max_pages", res.Stats)
			}
		})
	}
}

func TestCrawlDeadlineReturnsPartialResult(t *testing.T) {
	site := newFakeSite().page("https://site.test", "home", "https://site.test/slow")
	site.block["https://site.test/slow"] = true

	cfg := crawler.Config{Deadline: 50 * time.Millisecond}
	res, err := crawler.New(site, cfg).Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !slices.Equal(res.Texts, []string{"home"}) {
		t.Errorf("texts = %v, want [home]", res.Texts)
	}
	if !res.Stats.Truncated || res.Stats.StopReason != result.StopDeadline {
		t.Errorf("stats = %+v, want truncated by deadline", res.Stats)
	}
}

func TestCrawlMemoryBudget(t *testing.T) {
	ballast := make([]byte, 16<<20)
	site := newFakeSite().page("https://site.test", "home")

	res, err := crawler.New(site, crawler.Config{MemoryLimitMB: 1}).Run(context.Background(), "https://site.test", 1)
	runtime.KeepAlive(ballast)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Stats.StopReason != result.StopMemory || !res.Stats.Truncated {
		t.Errorf("stats = %+v, want truncated by memory", res.Stats)
	}
}

func TestCrawlCancellation(t *testing.T) {
	site := newFakeSite().page("https://site.test", "home", "https://site.test/slow")
	site.block["https://site.test/slow"] = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		res, err := crawler.New(site, crawler.Config{}).Run(ctx, "https://site.test", 1)
		if res != nil {
			t.Error("canceled crawl returned a result")
		}
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}
}

func TestCrawlRejectsBadSeed(t *testing.T) {
	_, err := crawler.New(newFakeSite(), crawler.Config{}).Run(context.Background(), "no-host", 1)
	if err == nil {
		t.Error("expected error for seed without host")
	}
}

func TestCrawlConcurrencyMatchesSequential(t *testing.T) {
	site := newFakeSite()
	// Binary tree of pages, each also linking to its parent and the root.
	for i := 1; i < 32; i++ {
		url := fmt.Sprintf("https://site.test/n%d", i)
		links := []string{
			fmt.Sprintf("https://site.test/n%d", 2*i),
			fmt.Sprintf("https://site.test/n%d/", 2*i+1),
			fmt.Sprintf("https://site.test/n%d", i/2),
			"https://site.test/n1",
		}
		site.page(url, fmt.Sprintf("page %d kayako", i), links...)
	}

	run := func(concurrency int) *result.Result {
		res, err := crawler.New(site, crawler.Config{Concurrency: concurrency, ErrorPolicy: crawler.SkipAndContinue}).
			Run(context.Background(), "https://site.test/n1", 5)
		if err != nil {
			t.Fatalf("Run(concurrency=%d) error: %v", concurrency, err)
		}
		return res
	}

	sequential := run(1)
	parallel := run(8)

	if !slices.Equal(sequential.Texts, parallel.Texts) {
		t.Errorf("texts differ:\nsequential %v\nparallel   %v", sequential.Texts, parallel.Texts)
	}
	if !slices.Equal(pageURLs(sequential), pageURLs(parallel)) {
		t.Errorf("page order differs:\nsequential %v\nparallel   %v", pageURLs(sequential), pageURLs(parallel))
	}
	if len(sequential.Skipped) != len(parallel.Skipped) {
		t.Errorf("skipped %d vs %d", len(sequential.Skipped), len(parallel.Skipped))
	}
}

type recordedCall struct {
	kind string
	url  string
}

type fakeRecorder struct {
	sessionID string
	calls     []recordedCall
	stats     result.CrawlStats
}

func (r *fakeRecorder) StartSession(_ context.Context, id, seed string, _ int) error {
	r.sessionID = id
	r.calls = append(r.calls, recordedCall{"start", seed})
	return nil
}

func (r *fakeRecorder) RecordPage(_ context.Context, id string, page crawler.PageRecord) error {
	if id != r.sessionID {
		return fmt.Errorf("unexpected session %s", id)
	}
	r.calls = append(r.calls, recordedCall{"page", page.URL})
	return nil
}

func (r *fakeRecorder) RecordSkip(_ context.Context, id string, skipped result.SkippedPage) error {
	if id != r.sessionID {
		return fmt.Errorf("unexpected session %s", id)
	}
	r.calls = append(r.calls, recordedCall{"skip", skipped.URL})
	return nil
}

func (r *fakeRecorder) FinishSession(_ context.Context, id string, stats result.CrawlStats) error {
	r.stats = stats
	r.calls = append(r.calls, recordedCall{"finish", id})
	return nil
}

func TestCrawlRecorderAndProgress(t *testing.T) {
	site := newFakeSite().
		page("https://site.test", "home", "https://site.test/a", "https://site.test/missing").
		page("https://site.test/a", "a")

	rec := &fakeRecorder{}
	events := make(chan crawler.CrawlEvent, 16)
	engine := crawler.New(site, crawler.Config{ErrorPolicy: crawler.SkipAndContinue},
		crawler.WithRecorder(rec),
		crawler.WithProgress(events),
	)

	res, err := engine.Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	close(events)

	want := []recordedCall{
		{"start", "https://site.test"},
		{"page", "https://site.test"},
		{"page", "https://site.test/a"},
		{"skip", "https://site.test/missing"},
		{"finish", res.SessionID},
	}
	if !slices.Equal(rec.calls, want) {
		t.Errorf("recorder calls = %v, want %v", rec.calls, want)
	}
	if rec.sessionID != res.SessionID {
		t.Errorf("recorder session = %q, result session = %q", rec.sessionID, res.SessionID)
	}
	if rec.stats.Fetched != 2 || rec.stats.Skipped != 1 {
		t.Errorf("finished stats = %+v", rec.stats)
	}

	var got []crawler.CrawlEvent
	for evt := range events {
		got = append(got, evt)
	}
	if len(got) != 3 {
		t.Fatalf("received %d events, want 3", len(got))
	}
	last := got[2]
	if last.URL != "https://site.test/missing" || last.Error == "" || last.Fetched != 2 || last.Skipped != 1 {
		t.Errorf("last event = %+v", last)
	}
	if got[0].Queued != 2 {
		t.Errorf("first event Queued = %d, want 2", got[0].Queued)
	}
}

func TestCrawlLogsVisitedSnapshot(t *testing.T) {
	dir := t.TempDir()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	site := newFakeSite().page("https://site.test", "home")
	_, err := crawler.New(site, crawler.Config{VisitedSpillDir: dir}, crawler.WithLogger(logger)).
		Run(context.Background(), "https://site.test", 1)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	out := logs.String()
	if !strings.Contains(out, "visited set snapshot") || !strings.Contains(out, dir) {
		t.Errorf("snapshot path not logged:\n%s", out)
	}
}
