package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/abdul-hamid-achik/depspec/packages/core/config"
	"github.com/abdul-hamid-achik/depspec/packages/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag    string
	logLevelFlag  string
	logFormatFlag string

	// fileConfig is the config file merged over defaults, loaded before
	// every command.
	fileConfig *config.Config
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "depspec",
	Short: "Run tests in the order their dependencies demand.",
	Long: `depspec runs test suites whose groups and tests declare dependencies
on each other. Tests are ordered so that dependencies run first, and a test
whose dependencies did not pass is blocked instead of executed.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	defer func() { _ = logger.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("DEPSPEC_CONFIG", ""), "Path to config file (env: DEPSPEC_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", getEnvString("DEPSPEC_LOG_LEVEL", ""), "Log level: debug, info, warn, error (env: DEPSPEC_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", getEnvString("DEPSPEC_LOG_FORMAT", ""), "Log format: console, json (env: DEPSPEC_LOG_FORMAT)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}

// setup loads the config file and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		exit(ExitConfigError)
		return err
	}
	fileConfig = cfg

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		logCfg.Format = cfg.LogFormat
	}
	if logLevelFlag != "" {
		logCfg.Level = logLevelFlag
	}
	if logFormatFlag != "" {
		logCfg.Format = logFormatFlag
	}

	l, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	logger = l
	return nil
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
