package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/setup"
)

func newSetupCommand(a *app) *cobra.Command {
	var desktopConfig string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with Claude Desktop",
	}
	cmd.PersistentFlags().StringVar(&desktopConfig, "desktop-config", "", "Claude Desktop config file (default: platform location)")

	install := &cobra.Command{
		Use:   "install",
		Short: "Add or update the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			binary, _ := cmd.Flags().GetString("binary")
			withHistory, _ := cmd.Flags().GetBool("history")

			if err := a.settings.EnsureDataDir(); err != nil {
				return err
			}
			path, entry, err := setup.Install(setup.Options{
				ConfigPath: desktopConfig,
				BinaryPath: binary,
				DataDir:    a.settings.DataDir,
				History:    withHistory,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Registered %s in: %s\n", setup.ServerName, path)
			fmt.Fprintf(out, "  Command: %s %s\n", entry.Command, strings.Join(entry.Args, " "))
			fmt.Fprintln(out, "\nRestart Claude Desktop to load the server.")
			return nil
		},
	}
	install.Flags().String("binary", "", "Path to the laiprep binary (default: this executable)")
	install.Flags().Bool("history", false, "Let the server save assessments to history")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove the server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, removed, err := setup.Uninstall(desktopConfig)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not registered in: %s\n", setup.ServerName, path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s from: %s\n", setup.ServerName, path)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(desktopConfig)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Desktop config: %s\n", st.ConfigPath)
			if st.Configured {
				fmt.Fprintf(out, "✓ Registered: %s %s\n", st.Entry.Command, strings.Join(st.Entry.Args, " "))
			}
			if len(st.OtherServers) > 0 {
				fmt.Fprintf(out, "Other servers: %s\n", strings.Join(st.OtherServers, ", "))
			}
			for _, issue := range st.Issues {
				fmt.Fprintf(out, "⚠️  %s\n", issue)
			}
			if !st.Configured {
				return failure(fmt.Errorf("%s is not registered", setup.ServerName))
			}
			return nil
		},
	}

	cmd.AddCommand(install, remove, status)
	return cmd
}
