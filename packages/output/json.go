package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/ledger"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Runs     []JSONRun   `json:"runs"`
	Tests    []JSONTest  `json:"tests"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary represents the test summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Blocked int `json:"blocked"`
	Skipped int `json:"skipped"`
}

// JSONRun describes one manifest run
type JSONRun struct {
	File       string                 `json:"file"`
	Name       string                 `json:"name"`
	RunID      string                 `json:"runId"`
	Duration   float64                `json:"duration"`
	Stats      JSONStats              `json:"stats"`
	HookErrors []string               `json:"hookErrors,omitempty"`
	Ledger     []ledger.GroupSnapshot `json:"ledger"`
}

// JSONStats holds duration percentiles in milliseconds
type JSONStats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// JSONTest represents a single test result
type JSONTest struct {
	Name          string        `json:"name"`
	Group         string        `json:"group"`
	QualifiedName string        `json:"qualifiedName"`
	File          string        `json:"file"`
	Outcome       guard.Outcome `json:"outcome"`
	Passed        bool          `json:"passed"`
	Skipped       bool          `json:"skipped,omitempty"`
	SkipReason    string        `json:"skipReason,omitempty"`
	Blocked       bool          `json:"blocked,omitempty"`
	Unmet         []string      `json:"unmet,omitempty"`
	Command       string        `json:"command,omitempty"`
	ExitCode      int           `json:"exitCode"`
	Duration      float64       `json:"duration"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// JSONFormatter formats test results as JSON
type JSONFormatter struct {
	writer  io.Writer
	runs    []JSONRun
	results []JSONTest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONTest, 0),
		runs:    make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	run := JSONRun{
		File:     result.File,
		Name:     result.Name,
		RunID:    result.RunID,
		Duration: millis(result.Duration),
		Stats: JSONStats{
			Count: result.Stats.Count,
			Min:   millis(result.Stats.Min),
			Max:   millis(result.Stats.Max),
			Mean:  millis(result.Stats.Mean),
			P50:   millis(result.Stats.P50),
			P90:   millis(result.Stats.P90),
			P99:   millis(result.Stats.P99),
		},
		Ledger: result.Ledger,
	}
	for _, err := range result.HookErrors {
		run.HookErrors = append(run.HookErrors, err.Error())
	}
	f.runs = append(f.runs, run)

	for _, r := range result.Results {
		test := JSONTest{
			Name:          r.Name,
			Group:         string(r.Group),
			QualifiedName: r.QualifiedName(),
			File:          result.File,
			Outcome:       r.Outcome,
			Passed:        r.Passed(),
			Skipped:       r.Outcome == guard.Skipped || r.Outcome == guard.Inconclusive,
			Blocked:       r.Blocked,
			Command:       r.Command,
			ExitCode:      r.ExitCode,
			Duration:      millis(r.Duration),
			Output:        r.Output,
		}

		if r.SkipReason != "" && r.SkipReason != "filtered out" {
			test.SkipReason = r.SkipReason
		}

		if r.Error != nil {
			test.Error = r.Error.Error()
			var depErr *guard.DependencyError
			if errors.As(r.Error, &depErr) {
				test.Unmet = depErr.Unmet()
			}
		}

		f.results = append(f.results, test)
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, t := range f.results {
		switch {
		case t.Blocked:
			summary.Blocked++
		case t.Outcome == guard.Passed:
			summary.Passed++
		case t.Outcome == guard.Failed:
			summary.Failed++
		case t.Outcome == guard.Errored:
			summary.Errored++
		default:
			summary.Skipped++
		}
	}
	summary.Total = len(f.results)

	output := JSONOutput{
		Summary:  summary,
		Runs:     f.runs,
		Tests:    f.results,
		Duration: millis(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
