package main

import (
	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/history"
	mcpserver "github.com/lai-prep-bridge/internal/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	var saveHistory bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve assessments to MCP clients over stdio",
		Long: `Run an MCP server on stdin/stdout exposing the assess_patient,
validate_config and list_interventions tools.

Logs go to stderr so they never mix with protocol traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []mcpserver.ServerOption{mcpserver.WithLogger(a.logger)}
			var store *history.SQLiteStore
			if saveHistory {
				var err error
				if store, err = a.openHistory(); err != nil {
					return err
				}
				opts = append(opts, mcpserver.WithHistoryStore(store))
			}

			server, err := mcpserver.NewServer(a.settings, opts...)
			if err != nil {
				if store != nil {
					store.Close()
				}
				return err
			}
			defer server.Close()

			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&saveHistory, "history", false, "Allow assess_patient to save results to the history database")

	return cmd
}
