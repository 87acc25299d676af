// Package config handles configuration loading and management for depspec.
//
// It provides functionality for:
//   - Loading configuration from .depspec.json or .depspec.yaml files
//   - Default configuration values
//   - Merging file configuration with command-line overrides
package config
