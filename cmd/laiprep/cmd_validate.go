package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/domain"
)

func newValidateCommand(a *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a risk model configuration file",
		Long: `Validate a risk model configuration file.

Every problem is reported, not only the first. Warnings flag unusual but
usable values; any error makes the configuration invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List populations and interventions")

	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, verbose bool) error {
	out := cmd.OutOrStdout()
	rule := strings.Repeat("=", 60)

	path := a.settings.ConfigPath
	if path == "" {
		found, err := config.Find()
		if err != nil {
			return err
		}
		path = found
	}

	fmt.Fprintf(out, "Validating configuration: %s\n", path)
	r := config.Validate(path)

	for _, msg := range r.Info {
		fmt.Fprintf(out, "✓ %s\n", msg)
	}
	if r.Config != nil {
		version := r.Version
		if version == "" {
			version = "Unknown"
		}
		fmt.Fprintf(out, "✓ Version: %s\n", version)
		printSectionCounts(out, r.Config)
		if verbose {
			printConfigDetails(out, r.Config)
		}
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(out, "⚠️  %s\n", msg)
	}
	for _, msg := range r.Errors {
		fmt.Fprintf(out, "❌ %s\n", msg)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, rule)
	if !r.Valid() {
		fmt.Fprintln(out, "❌ CONFIGURATION INVALID")
		fmt.Fprintln(out, rule)
		return failure(fmt.Errorf("configuration %s has %d error(s)", path, len(r.Errors)))
	}
	fmt.Fprintln(out, "✅ CONFIGURATION VALID")
	fmt.Fprintln(out, rule)
	return nil
}

func printSectionCounts(w io.Writer, cfg *domain.Configuration) {
	counts := []struct {
		name  string
		count int
	}{
		{domain.SectionPopulations, cfg.Populations.Len()},
		{domain.SectionBarriers, cfg.Barriers.Len()},
		{domain.SectionInterventions, cfg.Interventions.Len()},
		{domain.SectionHealthcareSettings, cfg.HealthcareSettings.Len()},
		{domain.SectionRiskCategories, cfg.RiskCategories.Len()},
	}
	for _, c := range counts {
		fmt.Fprintf(w, "✓ Section '%s': %d entries\n", c.name, c.count)
	}
}

func printConfigDetails(w io.Writer, cfg *domain.Configuration) {
	fmt.Fprintln(w, "\nPopulations:")
	cfg.Populations.Each(func(key string, p domain.Population) {
		fmt.Fprintf(w, "  • %s: %s (baseline attrition: %.0f%%)\n", key, p.Name, p.BaselineAttrition*100)
	})

	fmt.Fprintln(w, "\nInterventions:")
	cfg.Interventions.Each(func(key string, iv domain.Intervention) {
		fmt.Fprintf(w, "  • %s: %s (improvement: +%.1f%%)\n", key, iv.Name, iv.Improvement*100)
	})
	fmt.Fprintln(w)
}
