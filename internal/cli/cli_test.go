package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/internal/storage"
)

func TestParseRepoRef(t *testing.T) {
	cases := []struct {
		in                  string
		owner, repo, branch string
		wantErr             bool
	}{
		{in: "octocat/hello", owner: "octocat", repo: "hello", branch: "HEAD"},
		{in: "octocat/hello@dev", owner: "octocat", repo: "hello", branch: "dev"},
		{in: "octocat", wantErr: true},
		{in: "a/b/c", wantErr: true},
		{in: "octocat/hello@", wantErr: true},
		{in: "/hello", wantErr: true},
	}

	for _, tc := range cases {
		owner, repo, branch, err := parseRepoRef(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRepoRef(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRepoRef(%q): %v", tc.in, err)
			continue
		}
		if owner != tc.owner || repo != tc.repo || branch != tc.branch {
			t.Errorf("parseRepoRef(%q) = %s/%s@%s", tc.in, owner, repo, branch)
		}
	}
}

func TestWriteFindingsToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.txt")
	findings := []results.Finding{
		{Value: "api.example.com", Sources: []string{"u1"}},
		{Value: "cdn.example.com"},
	}

	if err := writeFindings(out, findings, true); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "api.example.com\tu1\n") {
		t.Errorf("expected annotated finding, got:\n%s", got)
	}
	if !strings.Contains(got, "cdn.example.com\n") {
		t.Errorf("expected bare finding, got:\n%s", got)
	}
}

func TestOpenBackendDispatch(t *testing.T) {
	ctx := context.Background()

	b, err := openBackend(ctx, "")
	if err != nil || b != nil {
		t.Errorf("empty DSN should yield no backend, got %v, %v", b, err)
	}

	dir := t.TempDir()
	for _, dsn := range []string{
		filepath.Join(dir, "f.ndjson"),
		filepath.Join(dir, "f.csv"),
		filepath.Join(dir, "f.db"),
	} {
		b, err := openBackend(ctx, dsn)
		if err != nil {
			t.Errorf("openBackend(%q): %v", dsn, err)
			continue
		}
		if b == nil {
			t.Errorf("openBackend(%q): nil backend", dsn)
			continue
		}
		b.Close()
	}
}

func TestPersistFindings(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "f.ndjson")
	b, err := openBackend(ctx, dsn)
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	findings := []results.Finding{
		{Value: "api.example.com", Sources: []string{"u1", "u2"}},
		{Value: "cdn.example.com"},
	}
	runID, err := persistFindings(ctx, b, storage.KindSubdomain, findings)
	if err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	stored, err := b.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored findings, got %d", len(stored))
	}
	for _, f := range stored {
		if f.Kind != storage.KindSubdomain {
			t.Errorf("unexpected kind %q", f.Kind)
		}
		if f.ID == "" || f.RunID != runID {
			t.Errorf("bad identifiers on %+v", f)
		}
	}
}
