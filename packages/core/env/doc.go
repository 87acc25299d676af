// Package env loads .env files and builds the environment handed to test
// commands started by the runner.
package env
