package results

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestSet_DeduplicatesWithSources(t *testing.T) {
	s := NewSet(true)

	if !s.Add("api.example.com", "https://github.com/a/b/blob/main/x.txt") {
		t.Error("first insert should be new")
	}
	if s.Add("api.example.com", "https://github.com/c/d/blob/main/y.txt") {
		t.Error("second insert of same value should not be new")
	}

	findings := s.Finalize()
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if len(findings[0].Sources) != 2 {
		t.Errorf("expected 2 sources, got %v", findings[0].Sources)
	}
}

func TestSet_DeduplicatesWithoutSources(t *testing.T) {
	s := NewSet(false)

	s.Add("api.example.com", "src-1")
	s.Add("api.example.com", "src-2")

	findings := s.Finalize()
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Sources != nil {
		t.Errorf("sources should not be retained, got %v", findings[0].Sources)
	}
}

func TestSet_DuplicateSourceCollapses(t *testing.T) {
	s := NewSet(true)

	s.Add("v", "same")
	s.Add("v", "same")

	findings := s.Finalize()
	if len(findings[0].Sources) != 1 {
		t.Errorf("expected one source, got %v", findings[0].Sources)
	}
}

func TestSet_FirstSeenOrder(t *testing.T) {
	s := NewSet(false)
	for _, v := range []string{"charlie", "alpha", "bravo", "alpha"} {
		s.Add(v, "")
	}

	findings := s.Finalize()
	var got []string
	for _, f := range findings {
		got = append(got, f.Value)
	}
	want := []string{"charlie", "alpha", "bravo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSet_Stats(t *testing.T) {
	s := NewSet(false)
	s.Add("a", "")
	s.Add("b", "")
	s.Add("a", "")
	s.AddHits(5)
	s.PageFetched()
	s.PageSkipped()
	s.TokenFailure()

	stats := s.Stats()
	if stats.UniqueValues != 2 {
		t.Errorf("expected 2 unique values, got %d", stats.UniqueValues)
	}
	if stats.HitsScanned != 5 || stats.PagesFetched != 1 || stats.PagesSkipped != 1 || stats.TokenFailures != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestSet_ConcurrentAdd(t *testing.T) {
	s := NewSet(true)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Add(fmt.Sprintf("value-%d", i%10), fmt.Sprintf("source-%d", w))
			}
		}(w)
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Errorf("expected 10 unique values, got %d", s.Len())
	}
}

func TestSortFindings(t *testing.T) {
	findings := []Finding{{Value: "b"}, {Value: "a"}, {Value: "c"}}
	SortFindings(findings)
	if findings[0].Value != "a" || findings[2].Value != "c" {
		t.Errorf("expected lexicographic order, got %v", findings)
	}
}
