package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/config"
	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/core/runner"
	"github.com/abdul-hamid-achik/depspec/packages/history"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"github.com/abdul-hamid-achik/depspec/packages/notify"
	"github.com/abdul-hamid-achik/depspec/packages/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run manifest tests in dependency order",
	Long: `Run the tests declared in depspec manifests (.yaml, .yml or .json).

Groups run after the groups they depend on, and tests run after the tests
they depend on. A test whose dependencies did not pass is blocked and
reported instead of executed.

Examples:
  depspec run suite.yaml
  depspec run ./suites/ --tags smoke
  depspec run suite.yaml --name "checkout*"
  depspec run ./suites/ --parallel --concurrency 8
  depspec run suite.yaml --strategy priority
  depspec run suite.yaml --output junit --output-file report.xml
  depspec run ./suites/ --rate 5
  depspec run ./suites/ --notify slack --slack-webhook $SLACK_WEBHOOK`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFileFlag     string
	nameFlag        string
	tagsFlag        string
	verboseFlag     int
	quietFlag       bool
	bailFlag        bool
	timeoutFlag     string
	noColorFlag     bool
	dryRunFlag      bool
	outputFlag      string
	outputFileFlag  string
	strategyFlag    string
	strictFlag      bool
	parallelFlag    bool
	concurrencyFlag int
	shellFlag       string
	watchFlag       bool
	historyFlag     string
	rateFlag        float64

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("DEPSPEC_ENV_FILE", ""), "Path to .env file injected into test commands (env: DEPSPEC_ENV_FILE)")
	runCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Run only tests matching name pattern (dependencies are pulled in)")
	runCmd.Flags().StringVarP(&tagsFlag, "tags", "t", getEnvString("DEPSPEC_TAGS", ""), "Run only tests with specified tags (comma-separated) (env: DEPSPEC_TAGS)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (full command output, duration percentiles)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("DEPSPEC_QUIET", false), "Suppress all output except errors (env: DEPSPEC_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("DEPSPEC_NO_COLOR", false), "Disable colored output (env: DEPSPEC_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("DEPSPEC_OUTPUT", ""), "Output format: console, json, junit, tap (env: DEPSPEC_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("DEPSPEC_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: DEPSPEC_OUTPUT_FILE)")

	// Ordering flags
	runCmd.Flags().StringVarP(&strategyFlag, "strategy", "s", getEnvString("DEPSPEC_STRATEGY", ""), "Ordering strategy: dependency, priority (env: DEPSPEC_STRATEGY)")
	runCmd.Flags().BoolVar(&strictFlag, "strict", getEnvBool("DEPSPEC_STRICT", false), "Fail on cycles and unresolved dependencies (env: DEPSPEC_STRICT)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("DEPSPEC_BAIL", false), "Stop on first failure (env: DEPSPEC_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("DEPSPEC_TIMEOUT", ""), "Per-test timeout (e.g., 30s, 1m) (env: DEPSPEC_TIMEOUT)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show the execution plan without running anything")
	runCmd.Flags().BoolVarP(&parallelFlag, "parallel", "p", getEnvBool("DEPSPEC_PARALLEL", false), "Run independent groups concurrently (env: DEPSPEC_PARALLEL)")
	runCmd.Flags().IntVar(&concurrencyFlag, "concurrency", getEnvInt("DEPSPEC_CONCURRENCY", 0), "Maximum groups running at once in parallel mode (env: DEPSPEC_CONCURRENCY)")
	runCmd.Flags().StringVar(&shellFlag, "shell", getEnvString("DEPSPEC_SHELL", ""), "Shell used to run test commands (env: DEPSPEC_SHELL)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch manifests for changes and re-run tests")
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("DEPSPEC_HISTORY", ""), "Record runs in this sqlite database (env: DEPSPEC_HISTORY)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("DEPSPEC_RATE", 0), "Maximum test commands started per second, 0 for unlimited (env: DEPSPEC_RATE)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("DEPSPEC_NOTIFY", ""), "Notification services: slack, teams (comma-separated) (env: DEPSPEC_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("DEPSPEC_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: DEPSPEC_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// flagBool returns a pointer to v when the flag was given on the command
// line or through its environment variable, and nil otherwise.
func flagBool(cmd *cobra.Command, name, envKey string, v bool) *bool {
	if cmd.Flags().Changed(name) || os.Getenv(envKey) != "" {
		return config.BoolPtr(v)
	}
	return nil
}

// runConfig merges the run flags over the loaded config file.
func runConfig(cmd *cobra.Command) (*config.Config, error) {
	base := fileConfig
	if base == nil {
		base = config.DefaultConfig()
	}

	flags := &config.Config{
		Strategy:    strategyFlag,
		Strict:      flagBool(cmd, "strict", "DEPSPEC_STRICT", strictFlag),
		Parallel:    flagBool(cmd, "parallel", "DEPSPEC_PARALLEL", parallelFlag),
		Concurrency: concurrencyFlag,
		Bail:        flagBool(cmd, "bail", "DEPSPEC_BAIL", bailFlag),
		Shell:       shellFlag,
		EnvFile:     envFileFlag,
		Output:      outputFlag,
		NoColor:     flagBool(cmd, "no-color", "DEPSPEC_NO_COLOR", noColorFlag),
		HistoryFile: historyFlag,
		Rate:        rateFlag,
	}
	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		flags.Timeout = int(timeout.Milliseconds())
	}

	return base.Merge(flags), nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// newFormatter creates the formatter selected by format. A nil w writes to
// stdout.
func newFormatter(format string, w io.Writer, verbose, noColor bool) Formatter {
	switch strings.ToLower(format) {
	case "json":
		opts := []output.JSONOption{}
		if w != nil {
			opts = append(opts, output.JSONWithWriter(w))
		}
		return output.NewJSONFormatter(opts...)
	case "junit":
		opts := []output.JUnitOption{}
		if w != nil {
			opts = append(opts, output.JUnitWithWriter(w))
		}
		return output.NewJUnitFormatter(opts...)
	case "tap":
		opts := []output.TAPOption{}
		if w != nil {
			opts = append(opts, output.TAPWithWriter(w))
		}
		return output.NewTAPFormatter(opts...)
	default: // "console"
		consoleOpts := []output.ConsoleOption{
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		}
		if w != nil {
			consoleOpts = append(consoleOpts, output.WithWriter(w))
		}
		return output.NewConsoleFormatter(consoleOpts...)
	}
}

// notifyManager builds the notification manager from the notify flags. It
// returns nil when no service is selected.
func notifyManager() (*notify.Manager, error) {
	if notifyFlag == "" {
		return nil, nil
	}

	on, err := notify.ParseNotifyOn(notifyOnFlag)
	if err != nil {
		return nil, err
	}

	m := notify.NewManager(on)
	for _, service := range strings.Split(notifyFlag, ",") {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if slackWebhookFlag == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			var opts []notify.SlackOption
			if slackChannelFlag != "" {
				opts = append(opts, notify.WithSlackChannel(slackChannelFlag))
			}
			m.AddNotifier(notify.NewSlackNotifier(slackWebhookFlag, opts...))
		case "teams":
			if teamsWebhookFlag == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			m.AddNotifier(notify.NewTeamsNotifier(teamsWebhookFlag))
		case "":
		default:
			return nil, fmt.Errorf("unknown notification service %q (use slack or teams)", service)
		}
	}
	if m.Len() == 0 {
		return nil, nil
	}
	return m, nil
}

// runSummary is the outcome of one pass over all manifests.
type runSummary struct {
	failed       bool
	parseFailed  bool
	configFailed bool
	duration     time.Duration
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := runConfig(cmd)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		exit(ExitUsageError)
		return err
	}

	strategy, err := orderer.ParseStrategy(cfg.Strategy)
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

	if dryRunFlag {
		return planFiles(cmd, files, "console", strategy, cfg.GetStrict())
	}

	notifier, err := notifyManager()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		exit(ExitUsageError)
		return err
	}

	var outWriter io.Writer
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		outWriter = f
	} else if quietFlag && strings.ToLower(cfg.Output) == "console" {
		outWriter = io.Discard
	}
	noColor := cfg.GetNoColor() || quietFlag

	var store *history.Store
	if cfg.HistoryFile != "" {
		store, err = history.Open(cfg.HistoryFile)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			exit(ExitConfigError)
			return err
		}
		defer store.Close()
	}

	runnerCfg := &runner.Config{
		Strategy:    strategy,
		Strict:      cfg.GetStrict(),
		Bail:        cfg.GetBail(),
		NameFilter:  nameFlag,
		TagsFilter:  splitTags(tagsFlag),
		Parallel:    cfg.GetParallel(),
		Concurrency: cfg.Concurrency,
		Timeout:     time.Duration(cfg.Timeout) * time.Millisecond,
		Shell:       cfg.Shell,
		EnvFile:     cfg.EnvFile,
		Logger:      logger,
		Rate:        cfg.Rate,
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, stopping gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	runAll := func(formatter Formatter) runSummary {
		// A fresh runner per pass gives every pass its own ledger and run ID.
		r := runner.NewRunner(runnerCfg)
		summary := runSummary{}
		start := time.Now()

		// Every manifest of a pass shares one plan so group dependencies may
		// cross files.
		manifests := loadManifests(files, func(file string, err error) {
			formatter.FormatError(loadError(file, err))
			summary.parseFailed = true
		})

		var results []*runner.RunResult
		if len(manifests) > 0 && !(summary.parseFailed && cfg.GetBail()) {
			var err error
			results, err = r.RunAll(ctx, manifests...)
			if results == nil {
				formatter.FormatError(err)
				if errors.Is(err, runner.ErrEnvFile) {
					summary.configFailed = true
				} else {
					summary.parseFailed = true
				}
			}
		}

		for _, result := range results {
			formatter.FormatResult(result)
			if !result.Success() {
				summary.failed = true
			}
			if store != nil {
				if _, err := store.Record(context.WithoutCancel(ctx), result); err != nil {
					logger.Warn("history.record", zap.String("file", result.File), zap.Error(err))
				}
			}
		}

		summary.duration = time.Since(start)
		if flushable, ok := formatter.(Flushable); ok {
			if err := flushable.Flush(summary.duration); err != nil {
				formatter.FormatError(fmt.Errorf("error writing output: %w", err))
			}
		}

		if notifier != nil && len(results) > 0 {
			if err := notifier.Notify(context.WithoutCancel(ctx), notify.Summarize(results, summary.duration)); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to send notification: %v\n", err)
			}
		}
		return summary
	}

	formatter := newFormatter(cfg.Output, outWriter, verboseFlag > 0, noColor)
	formatter.FormatHeader(version)
	summary := runAll(formatter)

	if !watchFlag {
		switch {
		case summary.configFailed:
			exit(ExitConfigError)
		case summary.parseFailed:
			exit(ExitParseError)
		case summary.failed:
			exit(ExitTestFailure)
		}
		return nil
	}

	return watch(ctx, cmd, args, files, func() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nRe-running tests...\n\n")
		// JSON and JUnit accumulate results, so every pass needs a fresh formatter.
		runAll(newFormatter(cfg.Output, outWriter, verboseFlag > 0, noColor))
	})
}
