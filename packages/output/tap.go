package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number     int
	name       string
	outcome    guard.Outcome
	blocked    bool
	skipReason string
	error      string
	exitCode   int
	unmet      []string
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		f.testCount++
		tr := tapResult{
			number:     f.testCount,
			name:       r.QualifiedName(),
			outcome:    r.Outcome,
			blocked:    r.Blocked,
			skipReason: r.SkipReason,
			exitCode:   r.ExitCode,
		}

		if r.Error != nil {
			tr.error = r.Error.Error()
			var depErr *guard.DependencyError
			if errors.As(r.Error, &depErr) {
				tr.unmet = depErr.Unmet()
			}
		}

		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are included in individual test results
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		switch {
		case r.blocked:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: unmet dependencies\n")
			fmt.Fprintf(f.writer, "  unmet:\n")
			for _, u := range r.unmet {
				fmt.Fprintf(f.writer, "    - %s\n", escapeYAML(u))
			}
			fmt.Fprintf(f.writer, "  ...\n")
		case r.outcome == guard.Skipped || r.outcome == guard.Inconclusive:
			reason := r.skipReason
			if reason == "" || reason == "filtered out" {
				reason = "SKIP"
			}
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP %s\n", r.number, r.name, reason)
		case r.outcome == guard.Passed:
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
		default:
			fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
			fmt.Fprintf(f.writer, "  ---\n")
			fmt.Fprintf(f.writer, "  message: %s\n", escapeYAML(r.error))
			fmt.Fprintf(f.writer, "  severity: %s\n", severity(r.outcome))
			if r.outcome == guard.Failed {
				fmt.Fprintf(f.writer, "  exitCode: %d\n", r.exitCode)
			}
			fmt.Fprintf(f.writer, "  ...\n")
		}
	}

	fmt.Fprintln(f.writer)

	return nil
}

func severity(o guard.Outcome) string {
	if o == guard.Errored {
		return "error"
	}
	return "fail"
}

func escapeYAML(s string) string {
	// Simple YAML escaping - wrap in quotes if contains special chars
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
