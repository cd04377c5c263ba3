package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/gitrecon/internal/fingerprint"
	"github.com/FranksOps/gitrecon/internal/gh"
	"github.com/FranksOps/gitrecon/internal/metrics"
	"github.com/FranksOps/gitrecon/internal/report"
	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/internal/search"
	"github.com/FranksOps/gitrecon/internal/storage"
	"github.com/FranksOps/gitrecon/pkg/tokenpool"
	"github.com/FranksOps/gitrecon/pkg/useragent"
)

var (
	subDomain       string
	subExtend       bool
	subExtendLevels int
	subSources      bool
	subOutput       string
	subConcurrency  int
	subMaxPages     int
	subQuick        bool
	subSorted       bool
	subRawRPS       float64
	subFingerprint  string
	subReportFmt    string
	subReportFile   string
)

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Discover subdomains of a target domain via code search",
	RunE:  runSub,
}

func init() {
	f := subCmd.Flags()
	f.StringVarP(&subDomain, "domain", "d", "", "target domain (required)")
	f.BoolVarP(&subExtend, "extend", "e", false, "also query parent domains")
	f.IntVar(&subExtendLevels, "extend-levels", 1, "parent levels for --extend (-1 = down to the registrable domain)")
	f.BoolVarP(&subSources, "sources", "s", false, "annotate findings with the file URLs they were seen in")
	f.StringVarP(&subOutput, "output", "o", "", "write findings to this file instead of stdout")
	f.IntVarP(&subConcurrency, "concurrency", "c", 20, "worker pool size")
	f.IntVar(&subMaxPages, "max-pages", 10, "pagination cap per query variant")
	f.BoolVar(&subQuick, "quick", false, "run a single sort variant instead of all three")
	f.BoolVar(&subSorted, "sorted", false, "sort findings lexicographically instead of discovery order")
	f.Float64Var(&subRawRPS, "raw-rps", 2, "raw content fetch pacing in requests per second")
	f.StringVar(&subFingerprint, "fingerprint", "chrome", "TLS fingerprint for raw fetches (chrome, firefox, go)")
	f.StringVar(&subReportFmt, "report", "", "emit a run summary (text, json, html)")
	f.StringVar(&subReportFile, "report-file", "", "write the summary to this file instead of stderr")
	_ = subCmd.MarkFlagRequired("domain")
}

func runSub(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	start := time.Now()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := buildPool()
	if err != nil {
		return err
	}

	client, err := gh.NewClient(gh.Config{Pool: pool, Logger: logger})
	if err != nil {
		return err
	}
	raw, err := gh.NewRawFetcher(gh.RawConfig{
		RequestsPerSecond: subRawRPS,
		Jitter:            0.3,
		Fingerprint:       fingerprint.Profile(subFingerprint),
		UAPool:            useragent.NewPool(nil),
		Logger:            logger,
	})
	if err != nil {
		return err
	}
	defer raw.Close()

	if metricsPort > 0 {
		srv := metrics.Start(metricsPort)
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Stop(shutCtx)
		}()
	}

	sortModes := search.DefaultSortModes
	if subQuick {
		sortModes = sortModes[:1]
	}

	orch := search.New(search.Config{
		Concurrency:  subConcurrency,
		MaxPages:     subMaxPages,
		Extend:       subExtend,
		ExtendLevels: subExtendLevels,
		WithSources:  subSources,
		SortModes:    sortModes,
		Logger:       logger,
	}, client, raw, pool)

	fmt.Fprintf(os.Stderr, "%s searching code for %s with %d token(s)\n", infoTag, subDomain, pool.Len())

	findings, stats, runErr := orch.Run(ctx, subDomain)
	if runErr != nil && len(findings) == 0 {
		return runErr
	}
	if runErr != nil {
		// Interrupted or partially failed runs still flush what was found.
		fmt.Fprintf(os.Stderr, "%s run incomplete: %v\n", errTag, runErr)
	}

	if subSorted {
		results.SortFindings(findings)
	}
	if err := writeFindings(subOutput, findings, subSources); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%s %d unique subdomain(s) from %d page(s) in %s\n",
		okTag, stats.UniqueValues, stats.PagesFetched, time.Since(start).Round(time.Millisecond))

	if err := flushRun(ctx, storage.KindSubdomain, findings); err != nil {
		return err
	}

	if subReportFmt != "" {
		summary := report.GenerateSummary(subDomain, storage.KindSubdomain, findings, stats, start, time.Now())
		if err := writeReport(subReportFmt, subReportFile, summary); err != nil {
			return err
		}
	}
	return runErr
}

// buildPool loads stored tokens plus any passed on the command line.
func buildPool() (*tokenpool.Pool, error) {
	store, err := openTokenStore()
	if err != nil {
		return nil, err
	}
	stored, err := store.List()
	if err != nil {
		return nil, err
	}

	pool := tokenpool.NewPool(tokenpool.Config{})
	pool.Add(stored...)
	pool.Add(extraTokens...)

	if pool.Len() == 0 {
		return nil, errors.New("no tokens configured, add one with 'gitrecon token add'")
	}
	return pool, nil
}

// flushRun persists findings when --store is set.
func flushRun(ctx context.Context, kind string, findings []results.Finding) error {
	// Persist even after cancellation; the parent ctx may already be done.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	backend, err := openBackend(ctx, storeDSN)
	if err != nil {
		return err
	}
	if backend == nil {
		return nil
	}
	defer backend.Close()

	runID, err := persistFindings(ctx, backend, kind, findings)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%s stored %d finding(s) under run %s\n", okTag, len(findings), runID)
	return nil
}
