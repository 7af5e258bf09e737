package crawler_test

import (
	"math"
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/lukemcguire/wordcrawl/crawler"
)

func TestMemoryWatcherGenerousLimit(t *testing.T) {
	watcher := crawler.NewMemoryWatcher(4096)
	defer watcher.Restore()

	used, level := watcher.Check()
	if used < 0 || used > 100 {
		t.Errorf("used = %f%%, want within [0, 100]", used)
	}
	if level != crawler.ThrottleNormal {
		t.Errorf("level = %v, want normal", level)
	}
}

func TestMemoryWatcherTinyLimitIsCritical(t *testing.T) {
	ballast := make([]byte, 8<<20)
	watcher := crawler.NewMemoryWatcher(1)
	defer watcher.Restore()

	_, level := watcher.Check()
	runtime.KeepAlive(ballast)

	if level != crawler.ThrottleCritical {
		t.Errorf("level = %v, want critical with 8MB live against a 1MB limit", level)
	}
}

func TestMemoryWatcherOnChange(t *testing.T) {
	ballast := make([]byte, 8<<20)
	watcher := crawler.NewMemoryWatcher(1)
	defer watcher.Restore()

	var levels []crawler.ThrottleLevel
	watcher.OnChange(func(level crawler.ThrottleLevel) {
		levels = append(levels, level)
	})

	watcher.Check()
	watcher.Check()
	runtime.KeepAlive(ballast)

	if len(levels) != 1 || levels[0] != crawler.ThrottleCritical {
		t.Errorf("callback levels = %v, want a single transition to critical", levels)
	}
}

func TestMemoryWatcherRestore(t *testing.T) {
	before := debug.SetMemoryLimit(-1)

	watcher := crawler.NewMemoryWatcher(64)
	if got := debug.SetMemoryLimit(-1); got != 64<<20 {
		t.Errorf("installed limit = %d, want %d", got, 64<<20)
	}

	watcher.Restore()
	after := debug.SetMemoryLimit(-1)
	if after != before && !(before <= 0 && after == math.MaxInt64) {
		t.Errorf("limit after Restore = %d, want %d", after, before)
	}
}

func TestThrottleLevelString(t *testing.T) {
	tests := map[crawler.ThrottleLevel]string{
		crawler.ThrottleNormal:   "normal",
		crawler.ThrottleWarning:  "warning",
		crawler.ThrottleCritical: "critical",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
