package gh

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FranksOps/gitrecon/internal/metrics"
	"github.com/FranksOps/gitrecon/pkg/httpclient"
	"github.com/FranksOps/gitrecon/pkg/tokenpool"
)

// PerPage is the page size requested from the code-search endpoint.
const PerPage = 100

// Config configures the API client.
type Config struct {
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds attempts for transient (5xx/network) failures.
	MaxRetries int
	// BackoffBase is the first retry delay; it doubles per attempt up to
	// BackoffMax.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Pool        *tokenpool.Pool
	Logger      *slog.Logger
}

// Client issues authenticated requests against the REST API using leased
// tokens. It is the only component that reads rate-limit headers, and it
// reports them back to the pool after every response.
type Client struct {
	cfg    Config
	http   *httpclient.Client
	logger *slog.Logger
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 8 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pool == nil {
		return nil, fmt.Errorf("gh: token pool is required")
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("gh: create http client: %w", err)
	}

	return &Client{
		cfg:    cfg,
		http:   hc,
		logger: cfg.Logger,
	}, nil
}

// SearchCode fetches one page of code-search results. sort may be empty for
// best-match ordering; order is "asc" or "desc".
func (c *Client) SearchCode(ctx context.Context, lease *tokenpool.Lease, query string, page int, sort, order string) (*CodeSearchResult, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("per_page", strconv.Itoa(PerPage))
	q.Set("page", strconv.Itoa(page))
	if sort != "" {
		q.Set("s", sort)
	}
	if order != "" {
		q.Set("o", order)
	}

	body, err := c.get(ctx, lease, c.cfg.BaseURL+"/search/code?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var result CodeSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &result, nil
}

// Tree fetches the recursive git tree of a branch as a flat listing.
func (c *Client) Tree(ctx context.Context, lease *tokenpool.Lease, owner, repo, branch string) (*TreeResult, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.cfg.BaseURL, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))

	body, err := c.get(ctx, lease, endpoint)
	if err != nil {
		return nil, err
	}

	var result TreeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if result.Truncated {
		c.logger.Warn("tree listing truncated by the API", "owner", owner, "repo", repo, "branch", branch)
	}
	return &result, nil
}

// get drives a single request through its retry state machine: transient
// failures re-enter the pending state with doubled backoff until MaxRetries;
// quota and auth failures terminate immediately with their typed error.
func (c *Client) get(ctx context.Context, lease *tokenpool.Lease, endpoint string) ([]byte, error) {
	delay := c.cfg.BackoffBase
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.cfg.BackoffMax {
				delay = c.cfg.BackoffMax
			}
		}

		body, retryable, err := c.doOnce(ctx, lease, endpoint)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
		c.logger.Warn("transient request failure", "endpoint", endpoint, "attempt", attempt, "err", err)
	}

	return nil, fmt.Errorf("gh: request failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, lease *tokenpool.Lease, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("gh: build request: %w", err)
	}
	req.Header.Set("Authorization", "token "+lease.Value)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "gitrecon")

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		// Network failure or timeout; same retry path.
		metrics.APIRequests.WithLabelValues("error").Inc()
		return nil, true, fmt.Errorf("gh: request: %w", err)
	}
	defer resp.Body.Close()

	metrics.APIRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	metrics.APIRequestDuration.Observe(time.Since(start).Seconds())

	remaining, resetAt := parseQuotaHeaders(resp.Header)
	if remaining >= 0 {
		c.cfg.Pool.Update(lease, remaining, resetAt)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, true, fmt.Errorf("gh: read body: %w", err)
		}
		return data, false, nil

	case resp.StatusCode == http.StatusUnauthorized:
		c.cfg.Pool.MarkInvalid(lease)
		metrics.TokenFailures.Inc()
		return nil, false, ErrInvalidToken

	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		// Primary quota exhaustion carries a reset header; secondary limits
		// (abuse detection) don't, so assume a short cooldown.
		if resetAt.IsZero() {
			resetAt = time.Now().Add(time.Minute)
		}
		c.cfg.Pool.Update(lease, 0, resetAt)
		metrics.RateLimitHits.Inc()
		return nil, false, ErrRateLimited

	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound

	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, false, ErrPageLimit

	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("gh: server error %d", resp.StatusCode)

	default:
		msg := decodeAPIError(resp.Body)
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrMalformed, resp.StatusCode, msg)
	}
}

// parseQuotaHeaders extracts the remaining-quota and reset-time headers.
// remaining is -1 when the header is absent.
func parseQuotaHeaders(h http.Header) (remaining int, resetAt time.Time) {
	remaining = -1
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			resetAt = time.Unix(sec, 0)
		}
	}
	return remaining, resetAt
}

func decodeAPIError(r io.Reader) string {
	var e apiError
	if err := json.NewDecoder(r).Decode(&e); err != nil || e.Message == "" {
		return "unknown error"
	}
	return e.Message
}
