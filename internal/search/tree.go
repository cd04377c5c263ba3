package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/gitrecon/internal/extract"
	"github.com/FranksOps/gitrecon/internal/gh"
	"github.com/FranksOps/gitrecon/internal/metrics"
	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/pkg/tokenpool"
)

// TreeConfig provides parameters for a repository path extraction run.
type TreeConfig struct {
	Mode        extract.PathMode
	WithSources bool
	Logger      *slog.Logger
}

// TreeRunner drives a single repository-tree listing through the path
// extractor. The tree endpoint is not paginated, so there is no worker pool;
// only token rotation and retry apply.
type TreeRunner struct {
	cfg    TreeConfig
	client *gh.Client
	pool   *tokenpool.Pool
	logger *slog.Logger
}

// NewTreeRunner creates a tree runner.
func NewTreeRunner(cfg TreeConfig, client *gh.Client, pool *tokenpool.Pool) *TreeRunner {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TreeRunner{
		cfg:    cfg,
		client: client,
		pool:   pool,
		logger: cfg.Logger,
	}
}

// Run lists the branch tree and extracts paths. Findings are annotated with
// the owner/repo@branch source when enabled.
func (r *TreeRunner) Run(ctx context.Context, owner, repo, branch string) ([]results.Finding, results.Stats, error) {
	set := results.NewSet(r.cfg.WithSources)
	source := fmt.Sprintf("%s/%s@%s", owner, repo, branch)

	var tree *gh.TreeResult
	for {
		lease, err := r.pool.AcquireWait(ctx)
		if err != nil {
			return nil, set.Stats(), err
		}

		tree, err = r.client.Tree(ctx, lease, owner, repo, branch)
		if errors.Is(err, gh.ErrRateLimited) {
			continue
		}
		if errors.Is(err, gh.ErrInvalidToken) {
			set.TokenFailure()
			continue
		}
		if errors.Is(err, gh.ErrNotFound) {
			return nil, set.Stats(), fmt.Errorf("search: repository or branch not found: %s: %w", source, err)
		}
		if err != nil {
			return nil, set.Stats(), err
		}
		break
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.Type == "blob" {
			paths = append(paths, entry.Path)
		}
	}
	set.AddHits(len(paths))

	for _, value := range extract.Paths(paths, r.cfg.Mode) {
		if set.Add(value, source) {
			metrics.RecordFinding("path")
		}
	}

	r.logger.Info("tree extraction complete",
		"repo", source, "blobs", len(paths), "unique", set.Len(), "truncated", tree.Truncated)

	return set.Finalize(), set.Stats(), nil
}
