package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/batch"
	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/service"
)

type batchOptions struct {
	input     string
	outputDir string
	summary   bool
}

func newBatchCommand(a *app) *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Process multiple patients from CSV input",
		Long: `Process multiple patients from a CSV file with a header row.

CSV format:
  population,age,current_prep_status,barriers,healthcare_setting,insurance_status
  PWID,35,naive,"HOUSING_INSTABILITY,TRANSPORTATION",COMMUNITY_HEALTH_CENTER,uninsured
  MSM,28,oral_prep,"SCHEDULING_CONFLICTS",LGBTQ_CENTER,insured

One <patient_id>_assessment.json is written per patient. Rows that fail are
reported and skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input CSV file with patient data")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Output directory for assessment results")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Generate summary CSV and statistics")
	cmd.Flags().Int("workers", batch.DefaultWorkers, "Number of patients assessed concurrently")
	_ = a.v.BindPFlag("batch_workers", cmd.Flags().Lookup("workers"))
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output-dir")

	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, opts *batchOptions) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	cfg, err := config.Load(a.settings.ConfigPath)
	if err != nil {
		return err
	}

	rows, err := batch.LoadRows(opts.input)
	if err != nil {
		return err
	}

	engine, err := service.NewEngine(cfg, a.logger, service.WithLogit(a.settings.UseLogit))
	if err != nil {
		return err
	}
	runner, err := batch.NewRunner(engine, opts.outputDir,
		batch.WithWorkers(a.settings.BatchWorkers),
		batch.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Processing %d patients...\n", len(rows))
	run, err := runner.Run(cmd.Context(), rows)
	if err != nil {
		return err
	}

	for _, res := range run.Failed() {
		fmt.Fprintf(errOut, "⚠️  Error processing patient %d: %v\n", res.Row, res.Err)
	}

	succeeded := run.Succeeded()
	fmt.Fprintf(out, "\n✓ Processed %d patients successfully\n", len(succeeded))
	fmt.Fprintf(out, "✓ Individual assessments saved to: %s\n", opts.outputDir)

	if opts.summary && len(succeeded) > 0 {
		summary := batch.Summarize(run)
		path, err := batch.WriteSummaryCSV(opts.outputDir, summary)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Summary saved to: %s\n", path)
		printBatchStats(out, batch.ComputeStats(summary))
	}

	if len(rows) > 0 && len(succeeded) == 0 {
		return failure(fmt.Errorf("no patients were assessed (%d failed)", len(rows)))
	}
	return nil
}

func printBatchStats(w io.Writer, stats batch.Stats) {
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "BATCH SUMMARY STATISTICS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total Patients: %d\n", stats.Total)
	fmt.Fprintf(w, "Average Baseline Success: %s\n", pct(stats.AvgBaseline))
	fmt.Fprintf(w, "Average Adjusted Success: %s\n", pct(stats.AvgAdjusted))
	fmt.Fprintf(w, "Average With Interventions: %s\n", pct(stats.AvgEstimated))
	fmt.Fprintf(w, "Average Improvement: +%s\n", pct(stats.AvgImprovement))

	fmt.Fprintln(w, "\nRisk Level Distribution:")
	for _, rc := range stats.RiskDistribution {
		fmt.Fprintf(w, "  %s: %d (%.0f%%)\n", rc.Level, rc.Count, rc.Share*100)
	}
	fmt.Fprintln(w, rule)
}
