package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the depspec configuration
type Config struct {
	Strategy    string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`       // dependency or priority
	Strict      *bool   `json:"strict,omitempty" yaml:"strict,omitempty"`           // cycles and unresolved references fail the plan
	Parallel    *bool   `json:"parallel,omitempty" yaml:"parallel,omitempty"`       // run independent groups concurrently
	Concurrency int     `json:"concurrency,omitempty" yaml:"concurrency,omitempty"` // max groups running at once
	Bail        *bool   `json:"bail,omitempty" yaml:"bail,omitempty"`               // stop on first failure
	Timeout     int     `json:"timeout,omitempty" yaml:"timeout,omitempty"`         // per-test timeout in milliseconds
	Shell       string  `json:"shell,omitempty" yaml:"shell,omitempty"`             // shell used to run test commands
	EnvFile     string  `json:"envFile,omitempty" yaml:"envFile,omitempty"`         // .env file injected into test commands
	Output      string  `json:"output,omitempty" yaml:"output,omitempty"`           // console, json, junit, tap
	NoColor     *bool   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	LogLevel    string  `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat   string  `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	HistoryFile string  `json:"historyFile,omitempty" yaml:"historyFile,omitempty"` // sqlite database for run history
	Rate        float64 `json:"rate,omitempty" yaml:"rate,omitempty"`               // max test commands started per second
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetStrict returns the strict setting, defaulting to false
func (c *Config) GetStrict() bool {
	return getBool(c.Strict, false)
}

// GetParallel returns the parallel setting, defaulting to false
func (c *Config) GetParallel() bool {
	return getBool(c.Parallel, false)
}

// GetBail returns the bail setting, defaulting to false
func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".depspec.json",
	"depspec.json",
	".depspec.yaml",
	".depspec.yml",
	".depspecrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Strategy != "" {
		result.Strategy = other.Strategy
	}
	if other.Concurrency > 0 {
		result.Concurrency = other.Concurrency
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Shell != "" {
		result.Shell = other.Shell
	}
	if other.EnvFile != "" {
		result.EnvFile = other.EnvFile
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.LogLevel != "" {
		result.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		result.LogFormat = other.LogFormat
	}
	if other.HistoryFile != "" {
		result.HistoryFile = other.HistoryFile
	}
	if other.Rate > 0 {
		result.Rate = other.Rate
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Strict != nil {
		result.Strict = other.Strict
	}
	if other.Parallel != nil {
		result.Parallel = other.Parallel
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	return &result
}

// SaveConfig saves the configuration to a file as JSON
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
