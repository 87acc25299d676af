// Package output provides formatters for displaying run results and plans.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//   - JUnit: JUnit XML format for CI integration
//   - TAP: Test Anything Protocol format
//
// Each formatter implements FormatResult, FormatError and FormatHeader.
// Formats that accumulate results implement Flush. Console and JSON also
// render execution plans through FormatPlan.
package output
