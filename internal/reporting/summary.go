// Package reporting turns collected run metrics into the persisted
// run summary, CSV export, and combined HTML report.
package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/FairForge/fraudgov-loadtest/internal/metrics"
)

// Run verdicts.
const (
	VerdictPass    = "PASS"
	VerdictFail    = "FAIL"
	VerdictUnknown = "UNKNOWN"
)

// errorRateBudget is the overall failure ratio above which a run fails.
const errorRateBudget = 0.01

// RunSummary is the persisted result of one load-test run.
type RunSummary struct {
	RunID               string              `json:"run_id"`
	Scenario            string              `json:"scenario"`
	ServicesTested      []string            `json:"services_tested"`
	StartTime           *time.Time          `json:"start_time"`
	EndTime             *time.Time          `json:"end_time"`
	TotalRequests       int64               `json:"total_requests"`
	TotalFailures       int64               `json:"total_failures"`
	AvgMS               float64             `json:"avg_ms"`
	P95MS               float64             `json:"p95_ms"`
	P99MS               float64             `json:"p99_ms"`
	RPS                 float64             `json:"rps"`
	PerOperation        []OperationSummary  `json:"per_operation"`
	ThresholdViolations []metrics.Violation `json:"threshold_violations"`
	Verdict             string              `json:"verdict"`
}

// OperationSummary is the per-operation breakdown inside a run summary.
type OperationSummary struct {
	Name     string  `json:"name"`
	Requests int64   `json:"requests"`
	Failures int64   `json:"failures"`
	AvgMS    float64 `json:"avg_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
}

// BuildSummary folds the collector's per-operation snapshots into one run
// summary. Overall percentiles are taken over the flattened latency list,
// not averaged across operations.
func BuildSummary(runID, scenario string, services []string, start, end *time.Time,
	snapshots []*metrics.Snapshot, violations []metrics.Violation) RunSummary {

	var totalReqs, totalFails int64
	var totalTime float64
	var all []float64
	perOp := make([]OperationSummary, 0, len(snapshots))

	for _, s := range snapshots {
		totalReqs += s.Count
		totalFails += s.Errors
		totalTime += s.TotalTimeMS
		all = append(all, s.ResponseTimes...)

		times := append([]float64(nil), s.ResponseTimes...)
		sort.Float64s(times)
		op := OperationSummary{
			Name:     s.Name,
			Requests: s.Count,
			Failures: s.Errors,
		}
		if s.Count > 0 {
			op.AvgMS = s.TotalTimeMS / float64(s.Count)
		}
		if len(times) > 0 {
			op.P95MS = metrics.Percentile(times, 0.95)
			op.P99MS = metrics.Percentile(times, 0.99)
		}
		perOp = append(perOp, op)
	}
	sort.Slice(perOp, func(i, j int) bool { return perOp[i].Name < perOp[j].Name })

	summary := RunSummary{
		RunID:               runID,
		Scenario:            scenario,
		ServicesTested:      services,
		StartTime:           start,
		EndTime:             end,
		TotalRequests:       totalReqs,
		TotalFailures:       totalFails,
		ThresholdViolations: violations,
	}
	if summary.ThresholdViolations == nil {
		summary.ThresholdViolations = []metrics.Violation{}
	}

	if totalReqs > 0 {
		summary.AvgMS = totalTime / float64(totalReqs)
	}
	if len(all) > 0 {
		sort.Float64s(all)
		summary.P95MS = metrics.Percentile(all, 0.95)
		summary.P99MS = metrics.Percentile(all, 0.99)
	}
	if start != nil && end != nil {
		if elapsed := end.Sub(*start).Seconds(); elapsed > 0 {
			summary.RPS = float64(totalReqs) / elapsed
		}
	}
	summary.PerOperation = perOp
	summary.Verdict = verdict(totalReqs, totalFails)
	return summary
}

// verdict applies the overall error-rate budget. A run that produced no
// requests proves nothing either way.
func verdict(requests, failures int64) string {
	if requests == 0 {
		return VerdictUnknown
	}
	if float64(failures)/float64(requests) < errorRateBudget {
		return VerdictPass
	}
	return VerdictFail
}

// WriteJSON writes run-summary-<run_id>.json into dir and returns the path.
func WriteJSON(summary RunSummary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-summary-%s.json", summary.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	return path, nil
}

// WriteCSV writes run-summary-<run_id>.csv as Metric,Value rows.
func WriteCSV(summary RunSummary, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("run-summary-%s.csv", summary.RunID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	rows := [][]string{
		{"Metric", "Value"},
		{"run_id", summary.RunID},
		{"scenario", summary.Scenario},
		{"verdict", summary.Verdict},
		{"total_requests", strconv.FormatInt(summary.TotalRequests, 10)},
		{"total_failures", strconv.FormatInt(summary.TotalFailures, 10)},
		{"avg_ms", formatFloat(summary.AvgMS)},
		{"p95_ms", formatFloat(summary.P95MS)},
		{"p99_ms", formatFloat(summary.P99MS)},
		{"rps", formatFloat(summary.RPS)},
		{"threshold_violations", strconv.Itoa(len(summary.ThresholdViolations))},
	}
	for _, op := range summary.PerOperation {
		rows = append(rows,
			[]string{op.Name + "_requests", strconv.FormatInt(op.Requests, 10)},
			[]string{op.Name + "_failures", strconv.FormatInt(op.Failures, 10)},
			[]string{op.Name + "_p95_ms", formatFloat(op.P95MS)},
		)
	}

	if err := w.WriteAll(rows); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
