package crawler

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
)

// ThrottleLevel indicates memory pressure severity.
type ThrottleLevel int

const (
	// ThrottleNormal indicates heap use below 75% of the limit.
	ThrottleNormal ThrottleLevel = iota
	// ThrottleWarning indicates heap use between 75% and 90% of the limit.
	ThrottleWarning
	// ThrottleCritical indicates heap use at or above 90% of the limit.
	ThrottleCritical
)

// String returns the level name used in logs.
func (l ThrottleLevel) String() string {
	switch l {
	case ThrottleWarning:
		return "warning"
	case ThrottleCritical:
		return "critical"
	default:
		return "normal"
	}
}

// MemoryWatcher tracks heap use against a budget while collected texts grow.
// It also installs the budget as the runtime's soft memory limit for the
// duration of the crawl; Restore puts the previous limit back.
type MemoryWatcher struct {
	mu            sync.Mutex
	limitBytes    int64
	previousLimit int64
	lastLevel     ThrottleLevel
	onChange      func(level ThrottleLevel)
}

// NewMemoryWatcher creates a watcher with a limit of limitMB megabytes.
func NewMemoryWatcher(limitMB int64) *MemoryWatcher {
	limitBytes := limitMB * 1024 * 1024
	return &MemoryWatcher{
		limitBytes:    limitBytes,
		previousLimit: debug.SetMemoryLimit(limitBytes),
	}
}

// Check returns heap use as a percentage of the limit and the matching
// throttle level. The change callback fires when the level differs from the
// previous Check.
func (m *MemoryWatcher) Check() (usedPercent float64, level ThrottleLevel) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.Lock()
	limit := m.limitBytes
	m.mu.Unlock()

	if limit <= 0 {
		return 0, ThrottleNormal
	}

	usedPercent = float64(memStats.HeapAlloc) / float64(limit) * 100
	switch {
	case usedPercent >= 90:
		level = ThrottleCritical
	case usedPercent >= 75:
		level = ThrottleWarning
	default:
		level = ThrottleNormal
	}

	m.mu.Lock()
	changed := level != m.lastLevel
	m.lastLevel = level
	onChange := m.onChange
	m.mu.Unlock()

	if changed && onChange != nil {
		onChange(level)
	}
	return usedPercent, level
}

// OnChange registers a callback for throttle level transitions.
func (m *MemoryWatcher) OnChange(cb func(level ThrottleLevel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = cb
}

// Restore reinstates the soft memory limit that was active before the
// watcher was created.
func (m *MemoryWatcher) Restore() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.previousLimit > 0 {
		debug.SetMemoryLimit(m.previousLimit)
	} else {
		debug.SetMemoryLimit(math.MaxInt64)
	}
}
