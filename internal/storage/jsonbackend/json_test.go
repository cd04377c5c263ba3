package jsonbackend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/gitrecon/internal/storage"
)

func newTestBackend(t *testing.T) storage.Backend {
	t.Helper()
	b, err := New(filepath.Join(t.TempDir(), "findings.ndjson"))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestJSON_SaveAndQuery(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	findings := []*storage.Finding{
		{ID: "1", RunID: "run-a", Kind: storage.KindSubdomain, Value: "api.example.com", Source: "u1", CreatedAt: time.Now().Add(-time.Minute)},
		{ID: "2", RunID: "run-b", Kind: storage.KindPath, Value: "config/app.yml", CreatedAt: time.Now()},
	}
	for _, f := range findings {
		if err := b.Save(ctx, f); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(all))
	}
	if all[0].ID != "2" {
		t.Errorf("expected newest finding first, got %s", all[0].ID)
	}

	// Writes after a query must still land in the file.
	if err := b.Save(ctx, &storage.Finding{ID: "3", RunID: "run-a", Kind: storage.KindSubdomain, Value: "cdn.example.com", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("save after query failed: %v", err)
	}
	byRun, err := b.Query(ctx, storage.Filter{RunID: "run-a"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byRun) != 2 {
		t.Errorf("expected 2 findings for run-a, got %d", len(byRun))
	}
}

func TestJSON_SinceAndValueFilters(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	cutoff := time.Now()
	old := &storage.Finding{ID: "old", RunID: "r", Kind: storage.KindSubdomain, Value: "old.example.com", CreatedAt: cutoff.Add(-time.Hour)}
	fresh := &storage.Finding{ID: "new", RunID: "r", Kind: storage.KindSubdomain, Value: "new.example.com", CreatedAt: cutoff.Add(time.Hour)}
	for _, f := range []*storage.Finding{old, fresh} {
		if err := b.Save(ctx, f); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	recent, err := b.Query(ctx, storage.Filter{Since: &cutoff})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Errorf("since filter returned %+v", recent)
	}

	byValue, err := b.Query(ctx, storage.Filter{Value: "old.example.com"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(byValue) != 1 || byValue[0].ID != "old" {
		t.Errorf("value filter returned %+v", byValue)
	}
}
