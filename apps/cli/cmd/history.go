package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded runs",
	Long: `Show runs recorded with 'depspec run --history <db>'.

Examples:
  depspec history --db runs.db
  depspec history --db runs.db --limit 5
  depspec history --db runs.db --run 42
  depspec history --db runs.db --prune 100
  depspec history --db runs.db --output json`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyDBFlag     string
	historyLimitFlag  int
	historyRunFlag    int64
	historyPruneFlag  int
	historyOutputFlag string
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("DEPSPEC_HISTORY", ""), "History database (env: DEPSPEC_HISTORY)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", history.DefaultLimit, "Number of runs to show")
	historyCmd.Flags().Int64Var(&historyRunFlag, "run", 0, "Show the tests of one stored run")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", 0, "Delete all but the newest N runs")
	historyCmd.Flags().StringVarP(&historyOutputFlag, "output", "o", "console", "Output format: console, json")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" && fileConfig != nil {
		path = fileConfig.HistoryFile
	}
	if path == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error: no history database (use --db or historyFile in the config)")
		exit(ExitUsageError)
		return fmt.Errorf("no history database")
	}

	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		exit(ExitConfigError)
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	asJSON := strings.EqualFold(historyOutputFlag, "json")

	if historyPruneFlag > 0 {
		n, err := store.Prune(ctx, historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s)\n", n)
		return nil
	}

	if historyRunFlag > 0 {
		tests, err := store.Tests(ctx, historyRunFlag)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, tests)
		}
		printHistoryTests(out, tests)
		return nil
	}

	runs, err := store.Recent(ctx, historyLimitFlag)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, runs)
	}
	printHistoryRuns(out, runs)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHistoryRuns(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tNAME\tRESULT\tPASSED\tFAILED\tBLOCKED\tSKIPPED\tDURATION\tP99")
	for _, r := range runs {
		status := green("pass")
		if !r.Success() {
			status = red("fail")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Name,
			status,
			r.Passed,
			r.Failed+r.Errored,
			r.Blocked,
			r.Skipped,
			r.Duration.Round(time.Millisecond),
			r.P99.Round(time.Millisecond),
		)
	}
	_ = tw.Flush()
}

func printHistoryTests(w io.Writer, tests []history.Test) {
	if len(tests) == 0 {
		fmt.Fprintln(w, "No tests recorded for this run")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tTEST\tOUTCOME\tEXIT\tDURATION\tERROR")
	for _, t := range tests {
		outcome := t.Outcome
		if t.Blocked {
			outcome += " (blocked)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			t.Group, t.Name, outcome, t.ExitCode, t.Duration.Round(time.Millisecond), firstErrorLine(t.Error))
	}
	_ = tw.Flush()
}

func firstErrorLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
