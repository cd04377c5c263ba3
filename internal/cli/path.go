package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/gitrecon/internal/extract"
	"github.com/FranksOps/gitrecon/internal/gh"
	"github.com/FranksOps/gitrecon/internal/report"
	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/internal/search"
	"github.com/FranksOps/gitrecon/internal/storage"
)

var (
	pathRepo       string
	pathSegments   bool
	pathSources    bool
	pathOutput     string
	pathSorted     bool
	pathReportFmt  string
	pathReportFile string
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Extract file paths or path segments from a repository tree",
	RunE:  runPath,
}

func init() {
	f := pathCmd.Flags()
	f.StringVarP(&pathRepo, "repo", "r", "", "repository as owner/repo or owner/repo@branch (required)")
	f.BoolVar(&pathSegments, "segments", false, "emit individual path segments instead of full paths")
	f.BoolVarP(&pathSources, "sources", "s", false, "annotate findings with the repository reference")
	f.StringVarP(&pathOutput, "output", "o", "", "write findings to this file instead of stdout")
	f.BoolVar(&pathSorted, "sorted", false, "sort findings lexicographically instead of tree order")
	f.StringVar(&pathReportFmt, "report", "", "emit a run summary (text, json, html)")
	f.StringVar(&pathReportFile, "report-file", "", "write the summary to this file instead of stderr")
	_ = pathCmd.MarkFlagRequired("repo")
}

// parseRepoRef splits owner/repo@branch. The branch defaults to HEAD, which
// the tree API resolves to the default branch.
func parseRepoRef(ref string) (owner, repo, branch string, err error) {
	branch = "HEAD"
	if at := strings.LastIndex(ref, "@"); at >= 0 {
		branch = ref[at+1:]
		if branch == "" {
			return "", "", "", fmt.Errorf("empty branch in %q", ref)
		}
		ref = ref[:at]
	}
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("repository must be owner/repo, got %q", ref)
	}
	return parts[0], parts[1], branch, nil
}

func runPath(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	start := time.Now()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, repo, branch, err := parseRepoRef(pathRepo)
	if err != nil {
		return err
	}

	pool, err := buildPool()
	if err != nil {
		return err
	}
	client, err := gh.NewClient(gh.Config{Pool: pool, Logger: logger})
	if err != nil {
		return err
	}

	mode := extract.FullPaths
	if pathSegments {
		mode = extract.Segments
	}

	runner := search.NewTreeRunner(search.TreeConfig{
		Mode:        mode,
		WithSources: pathSources,
		Logger:      logger,
	}, client, pool)

	fmt.Fprintf(os.Stderr, "%s listing tree of %s/%s@%s\n", infoTag, owner, repo, branch)

	findings, stats, err := runner.Run(ctx, owner, repo, branch)
	if err != nil {
		return err
	}

	if pathSorted {
		results.SortFindings(findings)
	}
	if err := writeFindings(pathOutput, findings, pathSources); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s %d unique path value(s) in %s\n",
		okTag, stats.UniqueValues, time.Since(start).Round(time.Millisecond))

	if err := flushRun(ctx, storage.KindPath, findings); err != nil {
		return err
	}

	if pathReportFmt != "" {
		target := fmt.Sprintf("%s/%s@%s", owner, repo, branch)
		summary := report.GenerateSummary(target, storage.KindPath, findings, stats, start, time.Now())
		if err := writeReport(pathReportFmt, pathReportFile, summary); err != nil {
			return err
		}
	}
	return nil
}
