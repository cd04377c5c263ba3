package gh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FranksOps/gitrecon/pkg/tokenpool"
)

func newTestClient(t *testing.T, baseURL string, pool *tokenpool.Pool) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     baseURL,
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		BackoffBase: 5 * time.Millisecond,
		BackoffMax:  20 * time.Millisecond,
		Pool:        pool,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestClient_SearchCodeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token tok-a" {
			t.Errorf("expected token auth header, got %q", got)
		}
		if got := r.URL.Query().Get("per_page"); got != strconv.Itoa(PerPage) {
			t.Errorf("expected per_page=%d, got %s", PerPage, got)
		}
		w.Header().Set("X-RateLimit-Remaining", "29")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))
		fmt.Fprint(w, `{"total_count": 2, "items": [
			{"name": "a.txt", "path": "docs/a.txt", "html_url": "https://github.com/o/r/blob/main/docs/a.txt"},
			{"name": "b.txt", "path": "b.txt", "html_url": "https://github.com/o/r/blob/main/b.txt"}
		]}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	result, err := client.SearchCode(context.Background(), lease, `"example.com"`, 1, "indexed", "desc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalCount != 2 || len(result.Items) != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Items[0].HTMLURL != "https://github.com/o/r/blob/main/docs/a.txt" {
		t.Errorf("unexpected item: %+v", result.Items[0])
	}
}

func TestClient_RateLimitZeroesToken(t *testing.T) {
	reset := time.Now().Add(time.Hour)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message": "API rate limit exceeded"}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	_, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", "")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	// The pool must now refuse the token and report the reset.
	_, err = pool.Acquire()
	var exhausted *tokenpool.ErrExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected exhausted pool, got %v", err)
	}
	if exhausted.ResetAt.Unix() != reset.Unix() {
		t.Errorf("expected reset %v, got %v", reset.Unix(), exhausted.ResetAt.Unix())
	}
}

func TestClient_InvalidTokenDisabledPermanently(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message": "Bad credentials"}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-bad")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	_, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", "")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if pool.Usable() != 0 {
		t.Error("invalid token should be unusable for the rest of the run")
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"total_count": 0, "items": []}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	result, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", "")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if result.TotalCount != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_ExhaustedRetriesSurfaceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	_, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", "")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrInvalidToken) {
		t.Errorf("transient exhaustion must not masquerade as %v", err)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": not-json`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	_, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", "")
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestClient_PageLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message": "Only the first 1000 search results are available"}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	_, err := client.SearchCode(context.Background(), lease, `"q"`, 11, "", "")
	if !errors.Is(err, ErrPageLimit) {
		t.Errorf("expected ErrPageLimit, got %v", err)
	}
}

func TestClient_Tree(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo/git/trees/main" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
			return
		}
		if r.URL.Query().Get("recursive") != "1" {
			t.Error("expected recursive=1")
		}
		fmt.Fprint(w, `{"sha": "abc", "truncated": false, "tree": [
			{"path": "src", "type": "tree"},
			{"path": "src/main.go", "type": "blob", "size": 42}
		]}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add("tok-a")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	tree, err := client.Tree(context.Background(), lease, "owner", "repo", "main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Entries) != 2 || tree.Entries[1].Path != "src/main.go" {
		t.Errorf("unexpected tree: %+v", tree)
	}

	lease, _ = pool.Acquire()
	_, err = client.Tree(context.Background(), lease, "owner", "missing", "main")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_UpdatesPoolFromHeaders(t *testing.T) {
	reset := time.Now().Add(time.Hour)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "7")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		fmt.Fprint(w, `{"total_count": 0, "items": []}`)
	}))
	defer ts.Close()

	pool := tokenpool.NewPool(tokenpool.Config{InitialQuota: 30})
	pool.Add("tok-a", "tok-b")
	client := newTestClient(t, ts.URL, pool)

	lease, _ := pool.Acquire()
	used := lease.Value
	if _, err := client.SearchCode(context.Background(), lease, `"q"`, 1, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The other token still has the full initial quota, so it must win the
	// next acquire.
	next, err := pool.Acquire()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Value == used {
		t.Errorf("expected the fresher token to be preferred, got %s again", used)
	}
}
