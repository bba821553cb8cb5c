package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/history"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect saved assessments",
		Long: `Inspect assessments saved with "assess --history" or the MCP server.

The history database defaults to <data-dir>/history.db and can be moved with
--history-db.`,
	}

	cmd.AddCommand(newHistoryListCommand(a))
	cmd.AddCommand(newHistoryShowCommand(a))
	cmd.AddCommand(newHistoryExportCommand(a))
	cmd.AddCommand(newHistoryDeleteCommand(a))

	return cmd
}

func (a *app) openHistory() (*history.SQLiteStore, error) {
	store, err := history.NewSQLiteStore(a.settings.HistoryDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	return store, nil
}

func newHistoryListCommand(a *app) *cobra.Command {
	var opts history.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved assessments, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No saved assessments.")
				return nil
			}
			printHistoryTable(out, records)
			fmt.Fprintf(out, "\nShowing %d of %d saved assessments\n", len(records), total)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", history.DefaultListLimit, "Maximum number of records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of records to skip")
	cmd.Flags().StringVar(&opts.PatientID, "patient", "", "Only records for this patient ID")
	cmd.Flags().StringVar(&opts.Population, "population", "", "Only records for this population")

	return cmd
}

var historyColumns = []string{"ID", "CREATED", "PATIENT", "POPULATION", "RISK", "ADJUSTED", "WITH INTERVENTIONS", "TOP INTERVENTION"}

func printHistoryTable(w io.Writer, records []*history.Record) {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		patient := rec.PatientID
		if patient == "" {
			patient = "-"
		}
		top := rec.TopIntervention
		if top == "" {
			top = "-"
		}
		rows = append(rows, []string{
			rec.ID,
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			patient,
			rec.Population,
			rec.RiskLevel,
			pct(rec.AdjustedSuccess),
			pct(rec.WithInterventions),
			top,
		})
	}

	widths := make([]int, len(historyColumns))
	for i, h := range historyColumns {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	writeRow := func(cells []string) {
		var buf bytes.Buffer
		for i, cell := range cells {
			if i == len(cells)-1 {
				buf.WriteString(cell)
				break
			}
			buf.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		fmt.Fprintln(w, buf.String())
	}

	writeRow(historyColumns)
	for _, row := range rows {
		writeRow(row)
	}
}

func newHistoryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print the export document of a saved assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, history.ErrNotFound) {
				return failure(fmt.Errorf("no saved assessment with id %s", args[0]))
			}
			if err != nil {
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, rec.Payload, "", "  "); err != nil {
				return fmt.Errorf("decoding payload: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
			return nil
		},
	}
}

func newHistoryExportCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every saved assessment as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			if output == "" {
				return store.ExportJSON(cmd.Context(), cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := store.ExportJSON(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d assessments to: %s\n", total, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			err = store.Delete(cmd.Context(), args[0])
			if errors.Is(err, history.ErrNotFound) {
				return failure(fmt.Errorf("no saved assessment with id %s", args[0]))
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted assessment %s\n", args[0])
			return nil
		},
	}
}
