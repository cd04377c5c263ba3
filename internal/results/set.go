package results

import (
	"sort"
	"sync"
)

// Finding is one unique extracted value with the locations it was seen at.
// Sources is nil unless source annotation was enabled.
type Finding struct {
	Value   string
	Sources []string
}

// Stats summarizes a run for reporting. Counters are updated concurrently by
// workers and snapshotted at finalization.
type Stats struct {
	HitsScanned   int
	UniqueValues  int
	PagesFetched  int
	PagesSkipped  int
	TokenFailures int
}

// Set is the single shared sink for extracted results. It deduplicates by
// value in first-seen order and merges sources. All methods are safe for
// concurrent use.
type Set struct {
	mu          sync.Mutex
	withSources bool
	order       []string
	sources     map[string][]string
	seenSource  map[string]map[string]struct{}
	stats       Stats
}

// NewSet creates a result set. When withSources is true, every distinct source
// location per value is retained for annotation.
func NewSet(withSources bool) *Set {
	return &Set{
		withSources: withSources,
		sources:     make(map[string][]string),
		seenSource:  make(map[string]map[string]struct{}),
	}
}

// Add inserts a value. A repeated value merges its source into the existing
// entry instead of duplicating it. It reports whether the value was new.
func (s *Set) Add(value, source string) bool {
	if value == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.sources[value]
	if !exists {
		s.order = append(s.order, value)
		s.sources[value] = nil
		s.seenSource[value] = make(map[string]struct{})
	}

	if s.withSources && source != "" {
		if _, dup := s.seenSource[value][source]; !dup {
			s.seenSource[value][source] = struct{}{}
			s.sources[value] = append(s.sources[value], source)
		}
	}

	return !exists
}

// Len returns the number of unique values collected so far.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// AddHits counts raw hits scanned, for summary statistics.
func (s *Set) AddHits(n int) {
	s.mu.Lock()
	s.stats.HitsScanned += n
	s.mu.Unlock()
}

// PageFetched records a successfully processed page.
func (s *Set) PageFetched() {
	s.mu.Lock()
	s.stats.PagesFetched++
	s.mu.Unlock()
}

// PageSkipped records a page abandoned after a terminal page-local failure.
func (s *Set) PageSkipped() {
	s.mu.Lock()
	s.stats.PagesSkipped++
	s.mu.Unlock()
}

// TokenFailure records a token permanently disabled during the run.
func (s *Set) TokenFailure() {
	s.mu.Lock()
	s.stats.TokenFailures++
	s.mu.Unlock()
}

// Finalize returns the findings in first-seen order. Order across runs depends
// on worker scheduling; callers needing stability sort afterwards.
func (s *Set) Finalize() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	findings := make([]Finding, 0, len(s.order))
	for _, v := range s.order {
		var srcs []string
		if s.withSources && len(s.sources[v]) > 0 {
			srcs = append([]string(nil), s.sources[v]...)
		}
		findings = append(findings, Finding{Value: v, Sources: srcs})
	}
	return findings
}

// Stats returns a snapshot of the run counters with UniqueValues filled in.
func (s *Set) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.stats
	snap.UniqueValues = len(s.order)
	return snap
}

// SortFindings orders findings lexicographically by value, for callers that
// want deterministic output.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		return findings[i].Value < findings[j].Value
	})
}
