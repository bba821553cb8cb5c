package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lai-prep-bridge/internal/domain"
)

const (
	ruleWidth = 80
	wrapWidth = 76
	maxShown  = 5
)

var printer = message.NewPrinter(language.English)

// Text renders the clinical report for an assessment of profile. Long
// guidance notes are wrapped to 76 display columns.
func Text(cfg *domain.Configuration, method domain.Method, profile domain.PatientProfile, a *domain.Assessment) string {
	w := &lineWriter{}
	heavy := strings.Repeat("=", ruleWidth)
	light := strings.Repeat("-", ruleWidth)

	version := cfg.Version
	if version == "" {
		version = "Unknown"
	}

	w.line(heavy)
	w.line("LAI-PrEP BRIDGE PERIOD ASSESSMENT")
	w.linef("Tool Version: %s (Enhanced)", version)
	w.linef("Calculation Method: %s", method.DisplayName())
	w.line(heavy)
	w.line("")

	w.line("PATIENT PROFILE")
	w.line(light)
	w.linef("Population: %s", a.Population.Name)
	w.linef("  Evidence Level: %s", a.Population.EvidenceLevel)
	w.linef("  Evidence Source: %s", a.Population.EvidenceSource)
	if profile.PatientID != "" {
		w.linef("Patient ID: %s", profile.PatientID)
	}
	w.linef("Age: %d years", profile.Age)
	w.linef("Current PrEP Status: %s", profile.PrEPStatus)
	settingName := profile.HealthcareSetting
	if setting, err := cfg.Setting(profile.HealthcareSetting); err == nil {
		settingName = setting.Name
	}
	w.linef("Healthcare Setting: %s", settingName)
	w.linef("Insurance: %s", profile.InsuranceStatus)

	if len(profile.Barriers) > 0 {
		w.line("")
		w.linef("Identified Barriers (%d):", len(profile.Barriers))
		for _, b := range a.BarrierDetails {
			w.linef("  • %s", b.Name)
			w.linef("    Impact: +%.1f pts | Evidence: %s", b.Impact*100, b.EvidenceLevel)
		}
	}
	w.line("")

	w.line("BRIDGE PERIOD SUCCESS PREDICTION")
	w.line(light)
	w.linef("Population Baseline Success Rate: %s", percent(a.BaselineSuccessRate))
	w.linef("Adjusted Success Rate (with barriers): %s", percent(a.AdjustedSuccessRate))
	if a.AttritionFactors.BestCaseFloorApplied {
		w.line("  (best-case floor applied: bridge can be eliminated)")
	}
	w.linef("Attrition Risk Level: %s", a.RiskLabel)
	w.linef("Estimated Bridge Duration: %s", a.BridgeDuration)

	if len(a.DelayFactors) > 0 {
		w.line("")
		w.line("Potential Delay Factors:")
		for i, factor := range a.DelayFactors {
			if i == maxShown {
				break
			}
			w.linef("  • %s", factor)
		}
	}

	w.line("")
	w.linef("💡 With recommended interventions: %s success", percent(a.SuccessWithInterventions))
	improvement := a.Improvement() * 100
	relative := 0.0
	if a.AdjustedSuccessRate > 0 {
		relative = improvement / a.AdjustedSuccessRate
	}
	w.linef("   Potential improvement: +%.1f percentage points (%.0f%% relative)", improvement, relative)
	w.line("")

	w.line("RECOMMENDED INTERVENTIONS (With Mechanism Diversity)")
	w.line(light)
	for i, rec := range a.Recommendations {
		if i == maxShown {
			break
		}
		w.line("")
		w.linef("%d. %s", i+1, rec.InterventionName)
		w.linef("   Priority: %s", rec.Priority)
		w.linef("   Expected Improvement: +%.1f percentage points", rec.ExpectedImprovement)
		w.linef("   Confidence Interval: [%.1f%%, %.1f%%]", rec.ConfidenceInterval.Lower, rec.ConfidenceInterval.Upper)
		w.linef("   Evidence Level: %s | Cost: %s | Complexity: %s", rec.EvidenceLevel, rec.CostLevel, rec.ImplementationComplexity)
		w.linef("   Mechanisms: %s", strings.Join(rec.Mechanisms, ", "))
		w.linef("   Rationale: %s", rec.Rationale)
	}
	w.line("")

	w.line("CLINICAL GUIDANCE")
	w.line(light)
	for _, note := range a.ClinicalNotes {
		for _, l := range Wrap(note, wrapWidth) {
			w.line(l)
		}
	}
	w.line("")

	w.line(heavy)
	w.line("Based on: Demidont & Backus (2025). Bridging the Gap: The PrEP")
	w.line("Cascade Paradigm Shift for Long-Acting Injectable HIV Prevention.")
	w.line("Enhanced with mechanism diversity scoring and explainability.")
	w.linef("Configuration Version: %s", version)
	w.line(heavy)

	return w.String()
}

// Wrap breaks s on spaces into lines no wider than width display columns.
// Continuation lines are indented by two spaces. A single word wider than
// width is kept whole.
func Wrap(s string, width int) []string {
	if runewidth.StringWidth(s) <= width {
		return []string{s}
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{s}
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if runewidth.StringWidth(current)+1+runewidth.StringWidth(word) <= width {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = "  " + word
	}
	return append(lines, current)
}

// percent formats a fraction as a percentage with one decimal
func percent(v float64) string {
	return printer.Sprintf("%.1f%%", v*100)
}

type lineWriter struct {
	b strings.Builder
	n int
}

func (w *lineWriter) line(s string) {
	if w.n > 0 {
		w.b.WriteByte('\n')
	}
	w.b.WriteString(s)
	w.n++
}

func (w *lineWriter) linef(format string, args ...any) {
	w.line(printer.Sprintf(format, args...))
}

func (w *lineWriter) String() string {
	return w.b.String()
}
