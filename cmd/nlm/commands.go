package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"notebooklm-mcp-server/internal/mcp"
	"notebooklm-mcp-server/internal/notebooklm"
	"notebooklm-mcp-server/internal/store"
)

func newLoginCmd() *cobra.Command {
	var cookies, csrf string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store NotebookLM credentials",
		Long: `Opens Chrome on NotebookLM and waits until you finish the Google sign-in.

With --cookies the browser is skipped and the given Cookie header is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			req := mcp.AuthRequest{Method: "browser"}
			if cookies != "" {
				req = mcp.AuthRequest{Method: "manual", Cookies: cookies, CSRFToken: csrf}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Complete the sign-in in the Chrome window..."))
			}
			status, err := rt.Authenticate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Signed in (%d cookies)", status.CookieCount)))
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Credentials saved to "+status.SavedTo))
			return nil
		},
	}
	cmd.Flags().StringVar(&cookies, "cookies", "", "Cookie header copied from a signed-in browser")
	cmd.Flags().StringVar(&csrf, "csrf", "", "Anti-forgery token (fetched automatically when omitted)")
	return cmd
}

func newNotebooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "notebooks",
		Aliases: []string{"ls"},
		Short:   "List notebooks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			clients, err := rt.Clients(cmd.Context())
			if err != nil {
				return err
			}
			notebooks, err := clients.Notebooks.ListNotebooks(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), notebooks)
			}
			renderNotebooks(cmd.OutOrStdout(), notebooks)
			return nil
		},
	}
}

func newResearchCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "research <notebook-id> <topic>",
		Short: "Research a topic and import the sources",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := notebooklm.ParseStrategy(strategy)
			if err != nil {
				return err
			}
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			clients, err := rt.Clients(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render(fmt.Sprintf("Researching %q (%s)...", args[1], s)))
			res, err := clients.Research.RunResearch(cmd.Context(), args[0], args[1], s)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderResearch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "comprehensive", "quick|comprehensive (aliases fast|deep)")
	return cmd
}

func newArtifactCmd() *cobra.Command {
	var rawConfig string
	cmd := &cobra.Command{
		Use:   "artifact <notebook-id> <kind>",
		Short: "Generate a studio artifact (audio, report, video, mind_map, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseArtifactConfig(rawConfig)
			if err != nil {
				return err
			}
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			clients, err := rt.Clients(cmd.Context())
			if err != nil {
				return err
			}
			kind := notebooklm.ParseArtifactKind(args[1])
			raw, err := clients.Research.CreateArtifact(cmd.Context(), args[0], kind, cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Requested %s for notebook %s", kind, args[0])))
			return nil
		},
	}
	cmd.Flags().StringVar(&rawConfig, "config", "", "Artifact options as a JSON object")
	return cmd
}

func parseArtifactConfig(raw string) (map[string]interface{}, error) {
	cfg := map[string]interface{}{}
	if raw == "" {
		return cfg, nil
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("artifact config must be a JSON object: %w", err)
	}
	return cfg, nil
}

func newImportRetryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-retry <task-id>",
		Short: "Re-import the sources of a finished research task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			clients, err := rt.Clients(cmd.Context())
			if err != nil {
				return err
			}
			res, err := clients.Research.RetryImport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			renderResearch(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newTasksCmd() *cobra.Command {
	var status string
	var limit int
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List stored research tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			st := rt.Store()
			if st == nil {
				return fmt.Errorf("research store is disabled (set store.path)")
			}
			tasks, err := st.List(cmd.Context(), store.TaskStatus(status), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), tasks)
			}
			renderTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: running|completed|imported|failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum tasks to show")
	return cmd
}
