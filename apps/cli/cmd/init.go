package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/core/config"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and an example request",
	Long: `Create httphelper files in the current directory.

This creates:
  - .httphelper.yaml  - Configuration file with client defaults
  - example.yaml      - Example request file

Examples:
  httphelper init
  httphelper init --force`,
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE:              initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	return initProject(cmd, cwd)
}

func initProject(cmd *cobra.Command, dir string) error {
	configFile := filepath.Join(dir, ".httphelper.yaml")
	exampleFile := filepath.Join(dir, "example.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return withExitCode(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.EnableCookies = config.BoolPtr(true)
	cfg.Headers = map[string]string{
		"User-Agent": "httphelper/" + version,
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	redirects := 5
	example := &reqfile.File{
		Name:   "create-post",
		Method: "POST",
		URL:    "${BASE_URL:-https://jsonplaceholder.typicode.com}/posts",
		Headers: map[string]string{
			"Accept": "application/json",
		},
		JSON: map[string]any{
			"title":  "hello",
			"body":   "sent by httphelper",
			"userId": 1,
		},
		Redirects: &redirects,
		Captures: map[string]string{
			"id": "body id",
		},
	}
	if err := example.Save(exampleFile); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhttphelper initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'httphelper send --file example.yaml -i' to send the example request.\n")

	return nil
}
