package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FranksOps/gitrecon/internal/extract"
	"github.com/FranksOps/gitrecon/internal/gh"
	"github.com/FranksOps/gitrecon/internal/metrics"
	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/pkg/tokenpool"
	"golang.org/x/sync/errgroup"
)

// SortMode is one sort/order combination sent to the search endpoint. The
// index only exposes a slice of matches per ordering, so querying several
// orderings widens coverage.
type SortMode struct {
	Sort  string
	Order string
}

// DefaultSortModes mirrors the orderings worth querying: recently indexed,
// oldest indexed, and best match.
var DefaultSortModes = []SortMode{
	{Sort: "indexed", Order: "desc"},
	{Sort: "indexed", Order: "asc"},
	{Sort: "", Order: "desc"},
}

// Config provides parameters for a subdomain discovery run.
type Config struct {
	// Concurrency bounds the worker pool (default 20).
	Concurrency int
	// MaxPages caps pagination depth per query; the search API refuses deep
	// pagination anyway, so pages past the cap are skipped, not failed
	// (default 10).
	MaxPages int
	// Extend adds parent-domain query variants.
	Extend bool
	// ExtendLevels bounds how many parent levels extended mode walks;
	// negative walks down to the registrable domain (default 1).
	ExtendLevels int
	// WithSources retains the originating file URL per finding.
	WithSources bool
	SortModes   []SortMode
	Logger      *slog.Logger
}

// Orchestrator drives a subdomain discovery run: it paginates every query
// variant across a bounded worker pool, feeding raw file content through the
// extractor into the shared result set.
type Orchestrator struct {
	cfg    Config
	client *gh.Client
	raw    *gh.RawFetcher
	pool   *tokenpool.Pool
	logger *slog.Logger

	// Raw URLs already fetched, shared across workers so the same file is
	// never downloaded twice.
	rawMu   sync.Mutex
	rawSeen map[string]struct{}
}

// pageUnit is one independent unit of work: a single page of a single query
// ordering.
type pageUnit struct {
	query     string
	extractor *extract.SubdomainExtractor
	mode      SortMode
	page      int
}

// New creates an orchestrator.
func New(cfg Config, client *gh.Client, raw *gh.RawFetcher, pool *tokenpool.Pool) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.ExtendLevels == 0 {
		cfg.ExtendLevels = 1
	}
	if len(cfg.SortModes) == 0 {
		cfg.SortModes = DefaultSortModes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		cfg:     cfg,
		client:  client,
		raw:     raw,
		pool:    pool,
		logger:  cfg.Logger,
		rawSeen: make(map[string]struct{}),
	}
}

// Run discovers subdomains of target. It always returns whatever findings
// were gathered; the error is non-nil only for total failures (no usable
// token, structurally invalid target, zero successful pages, cancellation).
func (o *Orchestrator) Run(ctx context.Context, target string) ([]results.Finding, results.Stats, error) {
	set := results.NewSet(o.cfg.WithSources)

	domains := []string{target}
	if o.cfg.Extend {
		domains = append(domains, extract.ParentVariants(target, o.cfg.ExtendLevels)...)
	}

	// One extractor per query domain; building them also validates the target
	// before any network traffic.
	extractors := make(map[string]*extract.SubdomainExtractor, len(domains))
	for _, d := range domains {
		e, err := extract.NewSubdomainExtractor(d)
		if err != nil {
			return nil, set.Stats(), err
		}
		extractors[d] = e
	}

	// Page 1 of every query/ordering combination is fetched synchronously to
	// learn the page count; the remaining pages become independent units.
	var units []pageUnit
	for _, d := range domains {
		query := fmt.Sprintf("%q", d)
		for _, mode := range o.cfg.SortModes {
			first := pageUnit{query: query, extractor: extractors[d], mode: mode, page: 1}
			total, err := o.processFirstPage(ctx, first, set)
			if err != nil {
				if isFatal(err) {
					return set.Finalize(), set.Stats(), err
				}
				o.logger.Warn("first page failed, skipping ordering",
					"query", query, "sort", mode.Sort, "order", mode.Order, "err", err)
				set.PageSkipped()
				metrics.RecordPage("skipped")
				continue
			}

			pages := (total + gh.PerPage - 1) / gh.PerPage
			if pages > o.cfg.MaxPages {
				pages = o.cfg.MaxPages
			}
			for p := 2; p <= pages; p++ {
				units = append(units, pageUnit{query: query, extractor: extractors[d], mode: mode, page: p})
			}
		}
	}

	if err := o.runWorkers(ctx, units, set); err != nil {
		return set.Finalize(), set.Stats(), err
	}

	stats := set.Stats()
	if stats.PagesFetched == 0 {
		return set.Finalize(), stats, errors.New("search: no page could be fetched")
	}
	return set.Finalize(), stats, nil
}

// runWorkers distributes page units over the bounded worker pool. Rate-limited
// units are re-enqueued rather than dropped; the next acquire rotates to
// another token or blocks until the earliest reset.
func (o *Orchestrator) runWorkers(ctx context.Context, units []pageUnit, set *results.Set) error {
	if len(units) == 0 {
		return nil
	}

	queueSize := len(units) * 2
	if queueSize < 256 {
		queueSize = 256
	}
	queue := make(chan pageUnit, queueSize)

	var jobsWg sync.WaitGroup
	jobsWg.Add(len(units))
	for _, u := range units {
		queue <- u
	}

	g, gCtx := errgroup.WithContext(ctx)

	for i := 0; i < o.cfg.Concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return gCtx.Err()
				case u := <-queue:
					err := o.processUnit(gCtx, u, set)
					switch {
					case errors.Is(err, gh.ErrRateLimited):
						metrics.RecordPage("requeued")
						jobsWg.Add(1)
						select {
						case queue <- u:
						case <-gCtx.Done():
							jobsWg.Done()
						}
					case isFatal(err):
						jobsWg.Done()
						return err
					case err != nil:
						o.logger.Warn("page skipped", "query", u.query, "page", u.page, "err", err)
						set.PageSkipped()
						metrics.RecordPage("skipped")
					}
					jobsWg.Done()
				}
			}
		})
	}

	done := make(chan struct{})
	go func() {
		jobsWg.Wait()
		close(done)
	}()

	select {
	case <-gCtx.Done():
		// A fatal worker error or caller cancellation. Partial results stay
		// in the set; g.Wait surfaces the first real error.
		if err := g.Wait(); err != nil {
			return err
		}
		return gCtx.Err()
	case <-done:
	}
	return nil
}

// processFirstPage fetches page 1 synchronously and returns the total hit
// count for pagination planning. Rate limits here retry in place since
// nothing else can proceed without the count.
func (o *Orchestrator) processFirstPage(ctx context.Context, u pageUnit, set *results.Set) (int, error) {
	for {
		result, err := o.fetchPage(ctx, u, set)
		if errors.Is(err, gh.ErrRateLimited) {
			// AcquireWait rotates to another token or sleeps out the reset.
			continue
		}
		if err != nil {
			return 0, err
		}
		o.extractPage(ctx, u, result, set)
		return result.TotalCount, nil
	}
}

// processUnit handles one queued page.
func (o *Orchestrator) processUnit(ctx context.Context, u pageUnit, set *results.Set) error {
	result, err := o.fetchPage(ctx, u, set)
	if err != nil {
		return err
	}
	o.extractPage(ctx, u, result, set)
	return nil
}

// fetchPage leases a token and fetches one search page.
func (o *Orchestrator) fetchPage(ctx context.Context, u pageUnit, set *results.Set) (*gh.CodeSearchResult, error) {
	lease, err := o.pool.AcquireWait(ctx)
	if err != nil {
		return nil, err
	}

	result, err := o.client.SearchCode(ctx, lease, u.query, u.page, u.mode.Sort, u.mode.Order)
	if errors.Is(err, gh.ErrInvalidToken) {
		// The token is already disabled in the pool; retry the unit on
		// whatever token the next acquire selects.
		set.TokenFailure()
		return nil, gh.ErrRateLimited
	}
	return result, err
}

// extractPage runs the extraction pipeline over every hit on a fetched page.
// Extraction starts as soon as the page lands; it never waits for siblings.
func (o *Orchestrator) extractPage(ctx context.Context, u pageUnit, page *gh.CodeSearchResult, set *results.Set) {
	set.PageFetched()
	metrics.RecordPage("fetched")
	set.AddHits(len(page.Items))

	for _, item := range page.Items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rawURL := o.raw.RawURL(item.HTMLURL)
		if !o.markRawSeen(rawURL) {
			continue
		}

		content, err := o.raw.Fetch(ctx, item.HTMLURL)
		if err != nil {
			o.logger.Debug("raw fetch failed", "url", rawURL, "err", err)
			continue
		}

		for _, value := range u.extractor.Extract(content) {
			if set.Add(value, item.HTMLURL) {
				metrics.RecordFinding("subdomain")
			}
		}
	}
}

// markRawSeen reports whether the raw URL was new, recording it as seen.
func (o *Orchestrator) markRawSeen(rawURL string) bool {
	o.rawMu.Lock()
	defer o.rawMu.Unlock()

	if _, ok := o.rawSeen[rawURL]; ok {
		return false
	}
	o.rawSeen[rawURL] = struct{}{}
	return true
}

// isFatal reports whether an error should abort the whole run rather than a
// single page.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	var exhausted *tokenpool.ErrExhausted
	return errors.As(err, &exhausted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
