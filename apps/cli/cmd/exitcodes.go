package cmd

import "os"

// Exit codes for depspec CLI
const (
	// ExitSuccess indicates all tests passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more tests failed, errored or were blocked
	ExitTestFailure = 1

	// ExitParseError indicates an invalid manifest or plan
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exit is replaced in tests.
var exit = os.Exit
