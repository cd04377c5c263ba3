package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/FranksOps/gitrecon/internal/report"
	"github.com/FranksOps/gitrecon/internal/results"
	"github.com/FranksOps/gitrecon/internal/storage"
	"github.com/FranksOps/gitrecon/internal/storage/csvbackend"
	"github.com/FranksOps/gitrecon/internal/storage/jsonbackend"
	"github.com/FranksOps/gitrecon/internal/storage/postgres"
	"github.com/FranksOps/gitrecon/internal/storage/sqlite"
)

var (
	infoTag = color.New(color.FgBlue, color.Bold).Sprint("[*]")
	okTag   = color.New(color.FgGreen, color.Bold).Sprint("[+]")
	errTag  = color.New(color.FgRed, color.Bold).Sprint("[-]")
)

func errPrefix() string { return errTag }

// writeFindings prints one finding per line to stdout, or to outFile when
// set. Source annotations are appended tab-separated.
func writeFindings(outFile string, findings []results.Finding, withSources bool) error {
	var w io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	for _, f := range findings {
		if withSources && len(f.Sources) > 0 {
			fmt.Fprintf(w, "%s\t%s\n", f.Value, strings.Join(f.Sources, ","))
		} else {
			fmt.Fprintln(w, f.Value)
		}
	}
	return nil
}

// openBackend dispatches a --store DSN to a storage backend. Postgres DSNs
// are recognized by scheme, flat files by extension; everything else is
// treated as a SQLite path.
func openBackend(ctx context.Context, dsn string) (storage.Backend, error) {
	switch {
	case dsn == "":
		return nil, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgres.New(ctx, dsn)
	case strings.HasSuffix(dsn, ".ndjson"), strings.HasSuffix(dsn, ".json"):
		return jsonbackend.New(dsn)
	case strings.HasSuffix(dsn, ".csv"):
		return csvbackend.New(dsn)
	default:
		return sqlite.New(dsn)
	}
}

// persistFindings saves findings under a fresh run ID and returns it.
func persistFindings(ctx context.Context, backend storage.Backend, kind string, findings []results.Finding) (string, error) {
	runID := uuid.NewString()
	now := time.Now().UTC()

	for _, f := range findings {
		rec := &storage.Finding{
			ID:        uuid.NewString(),
			RunID:     runID,
			Kind:      kind,
			Value:     f.Value,
			Source:    strings.Join(f.Sources, ","),
			CreatedAt: now,
		}
		if err := backend.Save(ctx, rec); err != nil {
			return runID, fmt.Errorf("save finding %q: %w", f.Value, err)
		}
	}
	return runID, nil
}

// writeReport renders a run summary in the requested format. An empty path
// writes to stderr so report output never mixes with piped findings.
func writeReport(format, path string, summary report.Summary) error {
	var w io.Writer = os.Stderr
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "", "text":
		return report.WriteText(w, summary)
	case "json":
		return report.WriteJSON(w, summary)
	case "html":
		return report.WriteHTML(w, summary)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}
