package reporting

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// reportTemplate renders one combined page across runs.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Load Test Report</title>
<style>
body { font-family: sans-serif; margin: 2em; color: #222; }
h1 { border-bottom: 2px solid #444; padding-bottom: 0.3em; }
table { border-collapse: collapse; margin: 1em 0; width: 100%; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; }
th { background: #f0f0f0; }
.pass { color: #207520; font-weight: bold; }
.fail { color: #b02020; font-weight: bold; }
.unknown { color: #888; font-weight: bold; }
.violation { background: #fdecea; }
</style>
</head>
<body>
<h1>Load Test Report</h1>
<p>Generated {{.GeneratedAt}} &middot; {{len .Runs}} run(s)</p>
<table>
<tr>
  <th>Run</th><th>Scenario</th><th>Services</th><th>Requests</th>
  <th>Failures</th><th>Avg (ms)</th><th>p95 (ms)</th><th>p99 (ms)</th>
  <th>RPS</th><th>Violations</th><th>Verdict</th>
</tr>
{{range .Runs}}
<tr{{if .ThresholdViolations}} class="violation"{{end}}>
  <td>{{.RunID}}</td>
  <td>{{.Scenario}}</td>
  <td>{{.Services}}</td>
  <td>{{.TotalRequests}}</td>
  <td>{{.TotalFailures}}</td>
  <td>{{printf "%.2f" .AvgMS}}</td>
  <td>{{printf "%.2f" .P95MS}}</td>
  <td>{{printf "%.2f" .P99MS}}</td>
  <td>{{printf "%.1f" .RPS}}</td>
  <td>{{len .ThresholdViolations}}</td>
  <td class="{{.VerdictClass}}">{{.Verdict}}</td>
</tr>
{{end}}
</table>
{{range .Runs}}{{if .ThresholdViolations}}
<h2>Violations: {{.RunID}}</h2>
<table>
<tr><th>Metric</th><th>Kind</th><th>Limit</th><th>Actual</th></tr>
{{range .ThresholdViolations}}
<tr><td>{{.Metric}}</td><td>{{.Kind}}</td><td>{{printf "%.2f" .Limit}}</td><td>{{printf "%.2f" .Actual}}</td></tr>
{{end}}
</table>
{{end}}{{end}}
</body>
</html>
`))

type reportRun struct {
	RunSummary
	Services     string
	VerdictClass string
}

type reportData struct {
	GeneratedAt string
	Runs        []reportRun
}

// WriteHTMLReport renders a combined report over the given summaries.
func WriteHTMLReport(summaries []RunSummary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	runs := make([]reportRun, 0, len(summaries))
	for _, s := range summaries {
		runs = append(runs, reportRun{
			RunSummary:   s,
			Services:     strings.Join(s.ServicesTested, ", "),
			VerdictClass: strings.ToLower(s.Verdict),
		})
	}

	path := filepath.Join(dir, "load-test-report.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	data := reportData{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Runs:        runs,
	}
	if err := reportTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return path, nil
}

// LoadSummaries reads every run-summary-*.json in dir, oldest run ID first.
func LoadSummaries(dir string) ([]RunSummary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "run-summary-*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []RunSummary
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read summary %s: %w", path, err)
		}
		var s RunSummary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode summary %s: %w", path, err)
		}
		out = append(out, s)
	}
	return out, nil
}
