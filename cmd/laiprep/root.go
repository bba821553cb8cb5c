package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/report"
)

// app is the state shared by every subcommand once settings are loaded.
type app struct {
	v            *viper.Viper
	settingsFile string
	settings     *config.Settings
	logger       *logrus.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "laiprep",
		Short: "LAI-PrEP bridge period decision support",
		Long: `laiprep estimates how likely a patient is to complete the bridge period
between LAI-PrEP prescription and first injection, identifies the barriers
that drive attrition and recommends evidence-based interventions.`,
		Version:       report.ToolVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.settingsFile, "settings", "", "Runtime settings file (default: search for bridge.yaml)")
	flags.StringP("config", "c", "", "Risk model configuration file (default: auto-detect)")
	flags.Bool("logit", false, "Use logit-space calculations")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json or text)")
	flags.String("data-dir", "", "Directory for history and exports")
	flags.String("history-db", "", "Assessment history database (default: <data-dir>/history.db)")

	for key, flag := range map[string]string{
		"config_path": "config",
		"use_logit":   "logit",
		"log_level":   "log-level",
		"log_format":  "log-format",
		"data_dir":    "data-dir",
		"history_db":  "history-db",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings, err := config.LoadSettings(a.v, a.settingsFile)
		if err != nil {
			return err
		}
		a.settings = settings
		a.logger = settings.NewLogger(cmd.ErrOrStderr())
		return nil
	}

	cmd.AddCommand(newAssessCommand(a))
	cmd.AddCommand(newBatchCommand(a))
	cmd.AddCommand(newValidateCommand(a))
	cmd.AddCommand(newTemplateCommand())
	cmd.AddCommand(newHistoryCommand(a))
	cmd.AddCommand(newMCPCommand(a))
	cmd.AddCommand(newSetupCommand(a))

	return cmd
}
