package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/gitrecon/internal/results"
)

// Summary contains aggregated metrics about a reconnaissance run.
type Summary struct {
	Target         string
	Kind           string
	HitsScanned    int
	PagesFetched   int
	PagesSkipped   int
	TokenFailures  int
	UniqueFindings int
	Findings       []Entry
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}

// Entry is a single finding together with where it was seen.
type Entry struct {
	Value   string
	Sources []string
}

// GenerateSummary folds run statistics and findings into a Summary.
func GenerateSummary(target, kind string, findings []results.Finding, stats results.Stats, start, end time.Time) Summary {
	s := Summary{
		Target:         target,
		Kind:           kind,
		HitsScanned:    stats.HitsScanned,
		PagesFetched:   stats.PagesFetched,
		PagesSkipped:   stats.PagesSkipped,
		TokenFailures:  stats.TokenFailures,
		UniqueFindings: stats.UniqueValues,
		StartTime:      start,
		EndTime:        end,
		Duration:       end.Sub(start),
	}

	for _, f := range findings {
		s.Findings = append(s.Findings, Entry{Value: f.Value, Sources: f.Sources})
	}
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Gitrecon Summary
----------------
Target:         {{.Target}} ({{.Kind}})
Time:           {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:       {{.Duration}}
Pages Fetched:  {{.PagesFetched}}
Pages Skipped:  {{.PagesSkipped}}
Hits Scanned:   {{.HitsScanned}}
Token Failures: {{.TokenFailures}}

Findings: {{.UniqueFindings}}
{{- range .Findings}}
  {{.Value}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse text template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render text report: %w", err)
	}

	return nil
}

// WriteHTML writes a basic HTML report to the provided writer.
func WriteHTML(w io.Writer, summary Summary) error {
	const htmlTmpl = `<!DOCTYPE html>
<html>
<head>
<title>Gitrecon Report</title>
<style>
  body { font-family: sans-serif; margin: 40px; color: #333; }
  h1 { border-bottom: 2px solid #ccc; padding-bottom: 10px; }
  .stat-card { display: inline-block; padding: 20px; margin: 10px 10px 10px 0; background: #f4f4f4; border-radius: 5px; min-width: 150px; }
  .stat-val { font-size: 24px; font-weight: bold; }
  table { border-collapse: collapse; margin-top: 10px; }
  th, td { padding: 8px 12px; border: 1px solid #ccc; text-align: left; }
  th { background: #eaeaea; }
</style>
</head>
<body>
  <h1>Gitrecon Report: {{.Target}}</h1>
  <p><strong>Time:</strong> {{.StartTime.Format "2006-01-02 15:04:05"}} to {{.EndTime.Format "2006-01-02 15:04:05"}} ({{.Duration}})</p>

  <div class="stat-card">
    <div>Unique Findings</div>
    <div class="stat-val">{{.UniqueFindings}}</div>
  </div>
  <div class="stat-card">
    <div>Pages Fetched</div>
    <div class="stat-val">{{.PagesFetched}}</div>
  </div>
  <div class="stat-card">
    <div>Pages Skipped</div>
    <div class="stat-val" style="color: {{if gt .PagesSkipped 0}}red{{else}}green{{end}};">{{.PagesSkipped}}</div>
  </div>
  <div class="stat-card">
    <div>Hits Scanned</div>
    <div class="stat-val">{{.HitsScanned}}</div>
  </div>

  <h3>Findings ({{.Kind}})</h3>
  <table>
    <tr><th>Value</th><th>Sources</th></tr>
    {{- range .Findings}}
    <tr><td>{{.Value}}</td><td>{{len .Sources}}</td></tr>
    {{- else}}
    <tr><td colspan="2">None</td></tr>
    {{- end}}
  </table>
</body>
</html>
`
	t, err := template.New("htmlReport").Parse(htmlTmpl)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}

	return nil
}
