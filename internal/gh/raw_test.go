package gh

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/gitrecon/internal/fingerprint"
)

func TestRawFetcher_RawURL(t *testing.T) {
	f, err := NewRawFetcher(RawConfig{Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	got := f.RawURL("https://github.com/owner/repo/blob/main/config/app.yml")
	want := "https://raw.githubusercontent.com/owner/repo/main/config/app.yml"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRawFetcher_Fetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		if r.URL.Path != "/owner/repo/main/notes.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("api.example.com"))
	}))
	defer ts.Close()

	f, err := NewRawFetcher(RawConfig{
		BaseURL:     ts.URL,
		Timeout:     2 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	content, err := f.Fetch(context.Background(), "https://github.com/owner/repo/blob/main/notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "api.example.com" {
		t.Errorf("unexpected content: %q", content)
	}

	// A missing file is a page-local failure, not a success with empty body.
	if _, err := f.Fetch(context.Background(), "https://github.com/owner/repo/blob/main/missing.txt"); err == nil {
		t.Error("expected error for 404 raw fetch")
	}
}

func TestRawFetcher_Cancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	f, _ := NewRawFetcher(RawConfig{
		BaseURL:     ts.URL,
		Timeout:     5 * time.Second,
		Fingerprint: fingerprint.ProfileGo,
	})
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Fetch(ctx, "https://github.com/o/r/blob/main/slow.txt"); err == nil {
		t.Error("expected cancellation error")
	}
}
