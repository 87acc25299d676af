// Package ledger tracks which tests of a run have completed successfully.
//
// A Ledger maps group identifiers to the runnable tests discovered for that
// group and a completion flag per test. It lives for exactly one run and is
// shared by every test of that run; all operations are safe for concurrent
// use. A test becomes complete at most once, and only after it passed.
package ledger
