// Package orderer arranges tests and test groups into an execution order.
//
// Two independent strategies are provided:
//   - Dependency ordering (Tests, Groups): depth-first emission that places
//     every declared dependency before its dependents while preserving
//     discovery order wherever no constraint applies
//   - Priority ordering (ByPriority): a stable sort on an explicit integer
//     priority, ties broken by discovery order
//
// A suite uses one strategy or the other, never both. Build combines the
// chosen strategy for groups and tests into a Plan, optionally rejecting
// cycles and unresolved references when Options.Strict is set.
package orderer
