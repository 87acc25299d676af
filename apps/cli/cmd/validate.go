package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/orderer"
	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate manifests without executing them",
	Long: `Validate manifests against the depspec schema, then check that every
declared dependency resolves and that no dependency cycle exists.

Examples:
  depspec validate suite.yaml
  depspec validate ./suites/
  depspec validate --schema > depspec.schema.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if schemaFlag {
			return nil
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: validateCommand,
}

var schemaFlag bool

func init() {
	validateCmd.Flags().BoolVar(&schemaFlag, "schema", false, "Print the manifest JSON schema and exit")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if schemaFlag {
		_, err := io.WriteString(cmd.OutOrStdout(), manifest.Schema())
		return err
	}

	files, err := manifest.Collect(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no manifest files found")
	}

	issues := validateFiles(files)
	hasErrors := false
	for _, file := range files {
		if found := issues[file]; len(found) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s:\n  %s\n", file, strings.Join(found, "\n  "))
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}
	if found := issues[""]; len(found) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error:\n  %s\n", strings.Join(found, "\n  "))
		hasErrors = true
	}

	if hasErrors {
		exit(ExitParseError)
	}

	return nil
}

// validateFiles returns every problem found in files, keyed by the file it
// belongs to. The manifests are planned together in best-effort mode, so a
// group may depend on a group of another file and all unresolved references
// and cycles are reported at once. Problems that span files are keyed "".
func validateFiles(files []string) map[string][]string {
	issues := make(map[string][]string)
	manifests := loadManifests(files, func(file string, err error) {
		issues[file] = append(issues[file], err.Error())
	})
	if len(manifests) == 0 {
		return issues
	}

	set, err := manifest.Combine(manifests...)
	if err != nil {
		issues[""] = append(issues[""], err.Error())
		return issues
	}
	plan, err := buildPlan(set, orderer.StrategyDependency, false)
	if err != nil {
		issues[""] = append(issues[""], err.Error())
		return issues
	}

	add := func(key, issue string) {
		file := ""
		if m, ok := ownerOf(set, plan, key); ok {
			file = m.Path
		}
		issues[file] = append(issues[file], issue)
	}
	for _, ref := range plan.Unresolved {
		add(ref.From, ref.String())
	}
	for _, cycle := range plan.Cycles {
		add(cycle[0], "dependency cycle: "+strings.Join(cycle, " -> "))
	}
	return issues
}
