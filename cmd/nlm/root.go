package main

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"notebooklm-mcp-server/internal/app"
	"notebooklm-mcp-server/internal/config"
)

var (
	configPath  string
	workspace   string
	noWorkspace bool
	jsonOutput  bool
	verbose     bool
	version     = "dev"
)

// openRuntime is replaced in tests.
var openRuntime = func() (*app.Runtime, error) {
	cfg, _, err := config.LoadWithWorkspace(configPath, config.WorkspaceOptions{
		Disable:     noWorkspace,
		ExplicitDir: workspace,
	})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nlm",
		Short: "Drive NotebookLM from the terminal",
		Long: `nlm talks to NotebookLM through the same client as the MCP server.

Quick Start:
  nlm login                              # sign in through Chrome
  nlm notebooks                          # list notebooks
  nlm research <notebook-id> "topic"     # research and import sources
  nlm artifact <notebook-id> audio       # start an audio overview
  nlm tasks --status failed              # stored research tasks
  nlm import-retry <task-id>             # re-import a finished task`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if !verbose {
				log.SetOutput(io.Discard)
			}
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (overrides the workspace config)")
	root.PersistentFlags().StringVar(&workspace, "workspace", "", "Workspace root holding .notebooklm-mcp/config.yaml")
	root.PersistentFlags().BoolVar(&noWorkspace, "no-workspace", false, "Ignore any .notebooklm-mcp workspace")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON instead of tables")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show workflow logs")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newLoginCmd(),
		newNotebooksCmd(),
		newResearchCmd(),
		newArtifactCmd(),
		newImportRetryCmd(),
		newTasksCmd(),
	)
	return root
}
