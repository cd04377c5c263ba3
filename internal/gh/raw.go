package gh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/gitrecon/internal/fingerprint"
	"github.com/FranksOps/gitrecon/pkg/httpclient"
	"github.com/FranksOps/gitrecon/pkg/ratelimit"
	"github.com/FranksOps/gitrecon/pkg/useragent"
)

// maxRawBody caps how much of a raw file is read for extraction. Hits larger
// than this are matched against a truncated body.
const maxRawBody = 4 << 20

// RawConfig configures the raw-content fetcher.
type RawConfig struct {
	// BaseURL overrides the CDN endpoint, used by tests. When set, blob URLs
	// are rewritten against it instead of raw.githubusercontent.com.
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond paces fetches (0 = unlimited); Jitter randomizes the
	// cadence.
	RequestsPerSecond float64
	Jitter            float64
	Fingerprint       fingerprint.Profile
	UAPool            *useragent.Pool
	Logger            *slog.Logger
}

// RawFetcher downloads raw file content for search hits. These requests are
// unauthenticated and go to the CDN, not the API, so they use browser TLS
// fingerprints and rotating User-Agents rather than token leases.
type RawFetcher struct {
	cfg     RawConfig
	http    *httpclient.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewRawFetcher creates a raw-content fetcher.
func NewRawFetcher(cfg RawConfig) (*RawFetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("gh: setup raw transport: %w", err)
	}

	hc, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: 3,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("gh: create raw client: %w", err)
	}

	return &RawFetcher{
		cfg:     cfg,
		http:    hc,
		limiter: ratelimit.NewLimiter(cfg.RequestsPerSecond, cfg.Jitter),
		logger:  cfg.Logger,
	}, nil
}

// Close releases the fetcher's pacing resources.
func (f *RawFetcher) Close() {
	f.limiter.Stop()
}

// RawURL converts a blob HTML URL into its raw-content equivalent.
func (f *RawFetcher) RawURL(htmlURL string) string {
	raw := strings.Replace(htmlURL, "https://github.com/", "https://raw.githubusercontent.com/", 1)
	raw = strings.Replace(raw, "/blob/", "/", 1)
	if f.cfg.BaseURL != "" {
		if i := strings.Index(raw, "raw.githubusercontent.com"); i >= 0 {
			raw = f.cfg.BaseURL + raw[i+len("raw.githubusercontent.com"):]
		}
	}
	return raw
}

// Fetch downloads the raw content behind a blob HTML URL. A non-200 status is
// a page-local failure; the caller skips the hit and moves on.
func (f *RawFetcher) Fetch(ctx context.Context, htmlURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}

	rawURL := f.RawURL(htmlURL)
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("gh: build raw request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UAPool.GetSequential())
	req.Header.Set("Accept", "*/*")

	resp, err := f.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("gh: raw fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gh: raw fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBody))
	if err != nil {
		return "", fmt.Errorf("gh: read raw body: %w", err)
	}
	return string(body), nil
}
