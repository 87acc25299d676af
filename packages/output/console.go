package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/abdul-hamid-achik/depspec/packages/core/guard"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
	"github.com/fatih/color"
)

// maxOutputLines bounds the command output echoed for a failed test.
const maxOutputLines = 20

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+runLabel(result)))

	var group descriptor.GroupID
	for i, r := range result.Results {
		if i == 0 || r.Group != group {
			group = r.Group
			fmt.Fprintf(f.writer, "\n  %s\n", bold(string(group)))
		}

		switch {
		case r.Blocked:
			fmt.Fprintf(f.writer, "    %s %s %s\n", yellow("⊘"), r.Name, yellow("(blocked)"))
			var depErr *guard.DependencyError
			if errors.As(r.Error, &depErr) {
				for _, unmet := range depErr.Unmet() {
					fmt.Fprintf(f.writer, "      %s %s\n", yellow("→"), unmet)
				}
			}
			continue
		case r.Outcome == guard.Skipped || r.Outcome == guard.Inconclusive:
			fmt.Fprintf(f.writer, "    %s %s", yellow("-"), r.Name)
			if r.SkipReason != "" && r.SkipReason != "filtered out" {
				fmt.Fprintf(f.writer, " (%s)", r.SkipReason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue
		case r.Outcome == guard.Errored:
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("x"), r.Name, red(fmt.Sprintf("(%v)", firstLine(r.Error))))
		case r.Passed():
			fmt.Fprintf(f.writer, "    %s %s %s\n", green("✓"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
		default:
			fmt.Fprintf(f.writer, "    %s %s %s\n", red("✗"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
			if r.Error != nil {
				fmt.Fprintf(f.writer, "      %s %v\n", red("→"), r.Error)
			}
		}

		if r.Output != "" && (f.verbose || !r.Passed()) {
			f.writeOutput(r.Output, !f.verbose)
		}
	}

	for _, err := range result.HookErrors {
		fmt.Fprintf(f.writer, "\n  %s %v\n", yellow("warning:"), firstLine(err))
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Tests: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Errored > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d errored", result.Errored)))
	}
	if result.Blocked > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d blocked", result.Blocked)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", result.Total())
	fmt.Fprintf(f.writer, "Time:  %dms\n", result.Duration.Milliseconds())
	if f.verbose && result.Stats.Count > 0 {
		fmt.Fprintf(f.writer, "Durations: p50 %s, p90 %s, p99 %s, max %s\n",
			result.Stats.P50, result.Stats.P90, result.Stats.P99, result.Stats.Max)
	}
	if f.verbose && result.RunID != "" {
		fmt.Fprintf(f.writer, "Run:   %s\n", result.RunID)
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) writeOutput(output string, truncate bool) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	hidden := 0
	if truncate && len(lines) > maxOutputLines {
		hidden = len(lines) - maxOutputLines
		lines = lines[hidden:]
	}
	if hidden > 0 {
		fmt.Fprintf(f.writer, "      ... %d more lines\n", hidden)
	}
	for _, line := range lines {
		fmt.Fprintf(f.writer, "      | %s\n", line)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("depspec"), version)
}

func runLabel(result *runner.RunResult) string {
	if result.File == "" || result.Name == result.File {
		return result.Name
	}
	return fmt.Sprintf("%s (%s)", result.Name, result.File)
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	line, _, _ := strings.Cut(err.Error(), "\n")
	return line
}
