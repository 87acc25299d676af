package config

const (
	// DefaultConcurrency is the default number of groups run at once in parallel mode
	DefaultConcurrency = 4
	// DefaultTimeoutMs is the default per-test timeout in milliseconds
	DefaultTimeoutMs = 60000
	// DefaultShell runs test commands
	DefaultShell = "sh"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Strategy:    "dependency",
		Strict:      BoolPtr(false),
		Parallel:    BoolPtr(false),
		Concurrency: DefaultConcurrency,
		Bail:        BoolPtr(false),
		Timeout:     DefaultTimeoutMs,
		Shell:       DefaultShell,
		Output:      "console",
		NoColor:     BoolPtr(false),
		LogLevel:    "warn",
		LogFormat:   "console",
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Strategy == defaults.Strategy &&
		c.GetStrict() == defaults.GetStrict() &&
		c.GetParallel() == defaults.GetParallel() &&
		c.Concurrency == defaults.Concurrency &&
		c.GetBail() == defaults.GetBail() &&
		c.Timeout == defaults.Timeout &&
		c.Shell == defaults.Shell &&
		c.EnvFile == defaults.EnvFile &&
		c.Output == defaults.Output &&
		c.GetNoColor() == defaults.GetNoColor() &&
		c.LogLevel == defaults.LogLevel &&
		c.LogFormat == defaults.LogFormat &&
		c.HistoryFile == defaults.HistoryFile &&
		c.Rate == defaults.Rate
}
