package cmd

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/manifest"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List all groups and tests in manifests",
	Long: `List all groups and tests declared in depspec manifests, in
declaration order, with their dependencies and tags.

Examples:
  depspec list suite.yaml
  depspec list ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := manifest.Collect(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no manifest files found")
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		m, err := manifest.Load(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(out, "\n%s:\n", file)
		for _, g := range m.Groups {
			fmt.Fprintf(out, "  %s", g.ID)
			if g.Name != "" {
				fmt.Fprintf(out, " (%s)", g.Name)
			}
			if len(g.DependsOn) > 0 {
				fmt.Fprintf(out, " ← %s", strings.Join(g.DependsOn, ", "))
			}
			fmt.Fprintln(out)

			for _, t := range g.Tests {
				fmt.Fprintf(out, "    - %s", t.Name)
				if len(t.DependsOn) > 0 {
					fmt.Fprintf(out, " ← %s", strings.Join(t.DependsOn, ", "))
				}
				if t.Skip != "" {
					fmt.Fprintf(out, " (skip: %s)", t.Skip)
				}
				fmt.Fprintln(out)
				if len(t.Tags) > 0 {
					fmt.Fprintf(out, "      tags: %v\n", t.Tags)
				}
			}
		}
	}

	return nil
}
