package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/depspec/packages/core/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new depspec project",
	Long: `Initialize a new depspec project in the current directory.

This creates:
  - .depspec.yaml         - Configuration file
  - example.depspec.yaml  - Example manifest with dependent groups and tests

Examples:
  depspec init
  depspec init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

const exampleManifest = `name: example
groups:
  - id: build
    name: Build
    tests:
      - name: compile
        run: echo compiling
        tags: [smoke]
      - name: lint
        run: echo linting
        priority: 1

  - id: integration
    name: Integration
    dependsOn: [build]
    before:
      - echo "starting services"
    after:
      - -echo "stopping services"
    tests:
      - name: migrate
        run: echo migrating
      - name: seed
        run: echo seeding
        dependsOn: [migrate]
      - name: query
        run: test -n "$DEPSPEC_RUN_ID"
        dependsOn: [seed]
        timeout: 10s
      - name: flaky
        run: "false"
        skip: known to fail on CI
`

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".depspec.yaml")
	exampleFile := filepath.Join(cwd, "example.depspec.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", f)
			}
		}
	}

	configYAML, err := yaml.Marshal(config.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(configFile, configYAML, 0644); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	if err := os.WriteFile(exampleFile, []byte(exampleManifest), 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\ndepspec project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'depspec run example.depspec.yaml' to execute the example tests.\n")

	return nil
}
