// Package guard enforces declared dependencies around each test.
//
// Before a test body runs, Enter registers the owning group's inventory in
// the ledger and verifies that every declared group dependency and method
// dependency has completed. All unmet dependencies are reported together in
// a single DependencyError and the body must not run. After the body, Exit
// records the test as complete if and only if it passed.
//
// The guard never waits for a dependency: ordering is responsible for
// running dependencies first, and the ledger check only asserts that it did.
package guard
