// Package runner executes depspec manifests.
//
// It provides functionality for:
//   - Ordering groups and tests through the orderer package
//   - Gating every test on its group and method dependencies
//   - Running test commands through a shell with per-test timeouts
//   - Group before/after hooks
//   - Name and tag filters that pull in the dependencies of selected tests
//   - Parallel execution of independent groups with bounded concurrency
//   - Duration statistics for executed tests
//
// Tests inside one group always run sequentially in plan order. In
// parallel mode only groups of the same dependency level run concurrently.
package runner
