package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"github.com/abdul-hamid-achik/depspec/packages/output"
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <file|directory>...",
	Short: "Show the execution order without running anything",
	Long: `Show the order in which groups and tests would run, the parallel
levels of independent groups, and any unresolved dependencies or cycles.

Examples:
  depspec plan suite.yaml
  depspec plan ./suites/ --strategy priority
  depspec plan suite.yaml --output json
  depspec plan ./suites/ --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: planCommand,
}

var (
	planOutputFlag   string
	planStrategyFlag string
	planStrictFlag   bool
	planVerboseFlag  bool
	planWatchFlag    bool
)

func init() {
	planCmd.Flags().StringVarP(&planOutputFlag, "output", "o", "console", "Output format: console, json")
	planCmd.Flags().StringVarP(&planStrategyFlag, "strategy", "s", getEnvString("DEPSPEC_STRATEGY", ""), "Ordering strategy: dependency, priority (env: DEPSPEC_STRATEGY)")
	planCmd.Flags().BoolVar(&planStrictFlag, "strict", getEnvBool("DEPSPEC_STRICT", false), "Fail on cycles and unresolved dependencies (env: DEPSPEC_STRICT)")
	planCmd.Flags().BoolVarP(&planVerboseFlag, "verbose", "v", false, "Show test priorities")
	planCmd.Flags().BoolVarP(&planWatchFlag, "watch", "w", false, "Watch manifests for changes and re-print the plan")
}

func planCommand(cmd *cobra.Command, args []string) error {
	strategyValue := planStrategyFlag
	strict := planStrictFlag
	if fileConfig != nil {
		if strategyValue == "" {
			strategyValue = fileConfig.Strategy
		}
		if !cmd.Flags().Changed("strict") && os.Getenv("DEPSPEC_STRICT") == "" {
			strict = fileConfig.GetStrict()
		}
	}
	strategy, err := orderer.ParseStrategy(strategyValue)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		exit(ExitUsageError)
		return err
	}

	files, err := manifest.Collect(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no manifest files found")
	}

	if !planWatchFlag {
		return planFiles(cmd, files, planOutputFlag, strategy, strict)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := printPlans(cmd, files, planOutputFlag, strategy, strict); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
	}
	return watch(ctx, cmd, args, files, func() {
		if err := printPlans(cmd, files, planOutputFlag, strategy, strict); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
	})
}

// planFiles prints the plan of every file and exits with ExitParseError
// when one of them cannot be planned.
func planFiles(cmd *cobra.Command, files []string, format string, strategy orderer.Strategy, strict bool) error {
	if err := printPlans(cmd, files, format, strategy, strict); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		exit(ExitParseError)
	}
	return nil
}

// printPlans prints one plan over every file, so group dependencies may
// cross files, and returns the first error. Files that fail to load are
// reported and left out of the plan.
func printPlans(cmd *cobra.Command, files []string, format string, strategy orderer.Strategy, strict bool) error {
	var firstErr error
	manifests := loadManifests(files, func(file string, err error) {
		err = loadError(file, err)
		if firstErr == nil {
			firstErr = err
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
		}
	})
	if len(manifests) == 0 {
		return firstErr
	}

	set, err := manifest.Combine(manifests...)
	if err == nil {
		var plan *orderer.Plan
		plan, err = buildPlan(set, strategy, strict)
		if err == nil {
			err = formatPlan(cmd, format, planSource(set), plan)
		}
	}
	if err != nil {
		if firstErr == nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", err)
	}
	return firstErr
}

func formatPlan(cmd *cobra.Command, format, source string, plan *orderer.Plan) error {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(cmd.OutOrStdout())).FormatPlan(source, plan)
	default:
		return output.NewConsoleFormatter(
			output.WithWriter(cmd.OutOrStdout()),
			output.WithVerbose(planVerboseFlag),
		).FormatPlan(source, plan)
	}
}
