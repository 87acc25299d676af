// Package cmd implements the depspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute manifest tests in dependency order
//   - plan: Show the execution order without running anything
//   - validate: Check manifests for schema errors, unresolved references and cycles
//   - list: Display all groups and tests defined in manifests
//   - history: Show recorded runs
//   - init: Create a config file and an example manifest
//   - version: Show depspec version information
//
// The CLI supports flags for filtering, ordering strategy, output
// formatting, parallel execution, and watch mode for development workflows.
package cmd
