package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

const (
	defaultExpectedURLs = 100000
	falsePositiveRate   = 0.001
	spillSyncEvery      = 1000
)

// VisitedOptions configures a VisitedSet.
type VisitedOptions struct {
	// ExpectedURLs sizes the bloom prefilter (default 100,000).
	ExpectedURLs uint
	// SpillDir, when set, keeps a memory-mapped snapshot of the bloom
	// filter in a temp file under this directory.
	SpillDir string
}

// VisitedSet is the set of URLs ever enqueued in a session.
// Membership is exact: the map is authoritative and the bloom filter only
// short-circuits lookups for URLs that are certainly new. Insert-if-absent
// is serialized by a mutex so concurrent discoverers enqueue a URL once.
type VisitedSet struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
	spill  *bloomSpill
}

// NewVisitedSet creates an empty visited set.
func NewVisitedSet(opts VisitedOptions) (*VisitedSet, error) {
	expected := opts.ExpectedURLs
	if expected == 0 {
		expected = defaultExpectedURLs
	}

	v := &VisitedSet{
		filter: bloom.NewWithEstimates(expected, falsePositiveRate),
		seen:   make(map[string]struct{}),
	}

	if opts.SpillDir != "" {
		spill, err := newBloomSpill(opts.SpillDir, v.filter)
		if err != nil {
			return nil, err
		}
		v.spill = spill
	}
	return v, nil
}

// VisitIfNew atomically checks if url is visited and marks it if not.
// Returns true if url was new.
func (v *VisitedSet) VisitIfNew(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.filter.TestString(url) {
		if _, ok := v.seen[url]; ok {
			return false
		}
	}

	v.filter.AddString(url)
	v.seen[url] = struct{}{}
	if v.spill != nil {
		v.spill.added(v.filter)
	}
	return true
}

// Contains reports whether url has been visited.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.filter.TestString(url) {
		return false
	}
	_, ok := v.seen[url]
	return ok
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// SpillPath returns the snapshot file path, or "" when spilling is off.
func (v *VisitedSet) SpillPath() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.spill == nil {
		return ""
	}
	return v.spill.path
}

// Close syncs and removes the snapshot file, if any.
func (v *VisitedSet) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.spill == nil {
		return nil
	}
	err := v.spill.close(v.filter)
	v.spill = nil
	if err != nil {
		return fmt.Errorf("close visited set: %w", err)
	}
	return nil
}

// bloomSpill mirrors a bloom filter into a memory-mapped temp file.
type bloomSpill struct {
	file    *os.File
	mapped  mmap.MMap
	path    string
	pending int
	lastErr error
}

func newBloomSpill(dir string, filter *bloom.BloomFilter) (*bloomSpill, error) {
	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	file, err := os.CreateTemp(dir, "wordcrawl-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create spill file: %w", err)
	}
	path := file.Name()

	cleanup := func() {
		_ = file.Close()
		_ = os.Remove(path)
	}

	if err := file.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("truncate spill file: %w", err)
	}

	mapped, err := mmap.MapRegion(file, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap spill file: %w", err)
	}
	copy(mapped, data)

	return &bloomSpill{file: file, mapped: mapped, path: path}, nil
}

// added counts an insert and syncs every spillSyncEvery inserts.
// Sync failures are kept and reported on close.
func (s *bloomSpill) added(filter *bloom.BloomFilter) {
	s.pending++
	if s.pending < spillSyncEvery {
		return
	}
	if err := s.sync(filter); err != nil {
		s.lastErr = err
	}
}

func (s *bloomSpill) sync(filter *bloom.BloomFilter) error {
	data, err := filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	copy(s.mapped, data)
	if err := s.mapped.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	s.pending = 0
	return nil
}

func (s *bloomSpill) close(filter *bloom.BloomFilter) error {
	var errs []error
	if s.lastErr != nil {
		errs = append(errs, s.lastErr)
	}
	if s.pending > 0 {
		if err := s.sync(filter); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.mapped.Unmap(); err != nil {
		errs = append(errs, fmt.Errorf("unmap: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("remove spill file: %w", err))
	}
	return errors.Join(errs...)
}
