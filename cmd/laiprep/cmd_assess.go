package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/batch"
	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/history"
	"github.com/lai-prep-bridge/internal/report"
	"github.com/lai-prep-bridge/internal/service"
)

type assessOptions struct {
	input       string
	output      string
	pretty      bool
	withReport  bool
	saveHistory bool
	export      bool
}

func newAssessCommand(a *app) *cobra.Command {
	opts := &assessOptions{}

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Assess a single patient from JSON input",
		Long: `Assess a single patient from a JSON file.

Input JSON format:
  {
    "population": "PWID",
    "age": 35,
    "current_prep_status": "naive",
    "barriers": ["HOUSING_INSTABILITY", "TRANSPORTATION"],
    "healthcare_setting": "COMMUNITY_HEALTH_CENTER",
    "insurance_status": "uninsured"
  }

The export document is written to --output, or to stdout when no output
file is given. --export keeps a copy under <data-dir>/exports named
<patient_id>_assessment.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAssess(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input JSON file with patient data")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output JSON file for assessment results")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")
	cmd.Flags().BoolVar(&opts.withReport, "report", false, "Print the clinical text report")
	cmd.Flags().BoolVar(&opts.saveHistory, "history", false, "Save the assessment to the local history database")
	cmd.Flags().BoolVar(&opts.export, "export", false, "Also write the document to <data-dir>/exports")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func (a *app) runAssess(cmd *cobra.Command, opts *assessOptions) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(a.settings.ConfigPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("reading patient file: %w", err)
	}
	profile, err := domain.ParsePatientJSON(data)
	if err != nil {
		return failure(err)
	}

	engine, err := service.NewEngine(cfg, a.logger, service.WithLogit(a.settings.UseLogit))
	if err != nil {
		return err
	}
	assessment, err := engine.Assess(profile)
	if err != nil {
		return failure(err)
	}
	doc := engine.Export(profile, assessment, time.Now())

	var encoded []byte
	if opts.pretty {
		encoded, err = json.MarshalIndent(doc, "", "  ")
	} else {
		encoded, err = json.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("encoding assessment: %w", err)
	}

	if opts.output == "" {
		fmt.Fprintln(out, string(encoded))
	} else {
		if err := os.WriteFile(opts.output, append(encoded, '\n'), 0644); err != nil {
			return fmt.Errorf("writing results: %w", err)
		}
		printAssessmentSummary(out, doc)
		fmt.Fprintf(out, "✓ Results saved to: %s\n", opts.output)
	}

	if opts.withReport {
		fmt.Fprintln(out)
		fmt.Fprint(out, report.Text(cfg, engine.Method(), profile, assessment))
	}

	if opts.export {
		path, err := a.writeExport(profile, encoded)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Export saved to: %s\n", path)
	}

	if opts.saveHistory {
		id, err := a.saveHistory(cmd, profile, assessment, doc)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Saved to history: %s\n", id)
	}

	a.logger.WithFields(logrus.Fields{
		"input":      opts.input,
		"output":     opts.output,
		"method":     engine.Method(),
		"risk_level": assessment.RiskLabel,
	}).Debug("Assessment written")

	return nil
}

func (a *app) writeExport(profile domain.PatientProfile, encoded []byte) (string, error) {
	if err := a.settings.EnsureDataDir(); err != nil {
		return "", fmt.Errorf("creating data directory: %w", err)
	}
	id := profile.PatientID
	if id == "" {
		id = "patient_" + time.Now().UTC().Format("20060102T150405")
	}
	path := filepath.Join(a.settings.ExportDir(), batch.ExportFileName(id))
	if err := os.WriteFile(path, append(encoded, '\n'), 0644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}

func (a *app) saveHistory(cmd *cobra.Command, profile domain.PatientProfile, assessment *domain.Assessment, doc *report.Document) (string, error) {
	store, err := history.NewSQLiteStore(a.settings.HistoryDBPath())
	if err != nil {
		return "", fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	rec, err := history.NewRecord(profile, assessment, doc)
	if err != nil {
		return "", err
	}
	if err := store.Save(cmd.Context(), rec); err != nil {
		return "", fmt.Errorf("saving history: %w", err)
	}
	return rec.ID, nil
}

func printAssessmentSummary(w io.Writer, doc *report.Document) {
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "ASSESSMENT SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Risk Level: %s\n", doc.RiskAssessment.Level)
	fmt.Fprintf(w, "Baseline Success: %s\n", pct(doc.RiskAssessment.BaselineSuccess))
	fmt.Fprintf(w, "Adjusted Success: %s\n", pct(doc.RiskAssessment.AdjustedSuccess))
	fmt.Fprintf(w, "With Interventions: %s\n", pct(doc.Predictions.WithInterventions))
	fmt.Fprintf(w, "Improvement: +%s (%.0f%% relative)\n", pct(doc.Predictions.AbsoluteImprovement), doc.Predictions.RelativeImprovementPct)

	fmt.Fprintln(w, "\nTop 3 Recommendations:")
	for i, rec := range doc.Recommendations {
		if i == 3 {
			break
		}
		fmt.Fprintf(w, "  %d. %s\n", i+1, rec.InterventionName)
		fmt.Fprintf(w, "     Priority: %s | Improvement: +%.1f pts\n", rec.Priority, rec.ExpectedImprovement)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
