// Package report renders assessments as the machine-readable export document
// and as a plain-text clinical report.
package report

import (
	"math"
	"time"

	"github.com/lai-prep-bridge/internal/domain"
)

const (
	// ToolVersion is reported in export metadata
	ToolVersion = "2.1.0"
	// TargetBridgeDays is the bridge-period goal reported with every estimate
	TargetBridgeDays = 14
)

// Meta carries the export metadata that does not come from the assessment
type Meta struct {
	ToolVersion   string
	Timestamp     time.Time
	ConfigVersion string
}

// Document is the JSON export of one assessment
type Document struct {
	PatientProfile       PatientSummary          `json:"patient_profile"`
	RiskAssessment       RiskAssessment          `json:"risk_assessment"`
	Recommendations      []RecommendationSummary `json:"recommendations"`
	Predictions          Predictions             `json:"predictions"`
	BridgePeriodEstimate BridgePeriodEstimate    `json:"bridge_period_estimate"`
	Metadata             Metadata                `json:"metadata"`
}

type PatientSummary struct {
	PatientID         string   `json:"patient_id,omitempty"`
	Population        string   `json:"population"`
	PopulationName    string   `json:"population_name"`
	Age               int      `json:"age"`
	PrEPStatus        string   `json:"prep_status"`
	Barriers          []string `json:"barriers"`
	BarrierNames      []string `json:"barrier_names"`
	HealthcareSetting string   `json:"healthcare_setting"`
	InsuranceStatus   string   `json:"insurance_status"`
}

type RiskAssessment struct {
	Level            string              `json:"level"`
	BaselineSuccess  float64             `json:"baseline_success"`
	AdjustedSuccess  float64             `json:"adjusted_success"`
	AttritionFactors domain.Section[any] `json:"attrition_factors"`
	EvidenceBase     EvidenceBase        `json:"evidence_base"`
}

type EvidenceBase struct {
	Source string `json:"source"`
	Level  string `json:"level"`
}

type RecommendationSummary struct {
	Intervention             string             `json:"intervention"`
	InterventionName         string             `json:"intervention_name"`
	Priority                 string             `json:"priority"`
	ExpectedImprovement      float64            `json:"expected_improvement"`
	Rationale                string             `json:"rationale"`
	Evidence                 string             `json:"evidence"`
	Mechanisms               []string           `json:"mechanisms"`
	CostLevel                string             `json:"cost_level"`
	ImplementationComplexity string             `json:"implementation_complexity"`
	ConfidenceInterval       ConfidenceInterval `json:"confidence_interval"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type Predictions struct {
	WithoutInterventions   float64 `json:"without_interventions"`
	WithInterventions      float64 `json:"with_interventions"`
	AbsoluteImprovement    float64 `json:"absolute_improvement"`
	RelativeImprovementPct float64 `json:"relative_improvement_pct"`
}

type BridgePeriodEstimate struct {
	MinimumDays  int      `json:"minimum_days"`
	MaximumDays  int      `json:"maximum_days"`
	TargetDays   int      `json:"target_days"`
	DelayFactors []string `json:"delay_factors"`
}

type Metadata struct {
	ToolVersion   string `json:"tool_version"`
	Timestamp     string `json:"timestamp"`
	ConfigVersion string `json:"config_version"`
}

// Export builds the export document for an assessment of profile.
// Probabilities and improvements are rounded to four places, the relative
// improvement percentage to two.
func Export(profile domain.PatientProfile, a *domain.Assessment, meta Meta) *Document {
	if meta.ToolVersion == "" {
		meta.ToolVersion = ToolVersion
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	names := make([]string, 0, len(a.BarrierDetails))
	for _, b := range a.BarrierDetails {
		names = append(names, b.Name)
	}

	recs := make([]RecommendationSummary, 0, len(a.Recommendations))
	for _, rec := range a.Recommendations {
		recs = append(recs, RecommendationSummary{
			Intervention:             rec.Intervention,
			InterventionName:         rec.InterventionName,
			Priority:                 rec.Priority.String(),
			ExpectedImprovement:      round(rec.ExpectedImprovement, 4),
			Rationale:                rec.Rationale,
			Evidence:                 rec.EvidenceLevel,
			Mechanisms:               append([]string{}, rec.Mechanisms...),
			CostLevel:                rec.CostLevel,
			ImplementationComplexity: rec.ImplementationComplexity,
			ConfidenceInterval: ConfidenceInterval{
				Lower: round(rec.ConfidenceInterval.Lower, 4),
				Upper: round(rec.ConfidenceInterval.Upper, 4),
			},
		})
	}

	relative := 0.0
	if a.AdjustedSuccessRate > 0 {
		relative = round((a.SuccessWithInterventions/a.AdjustedSuccessRate-1)*100, 2)
	}

	return &Document{
		PatientProfile: PatientSummary{
			PatientID:         profile.PatientID,
			Population:        profile.Population,
			PopulationName:    a.Population.Name,
			Age:               profile.Age,
			PrEPStatus:        profile.PrEPStatus.String(),
			Barriers:          append([]string{}, profile.Barriers...),
			BarrierNames:      names,
			HealthcareSetting: profile.HealthcareSetting,
			InsuranceStatus:   profile.InsuranceStatus.String(),
		},
		RiskAssessment: RiskAssessment{
			Level:            a.RiskLabel,
			BaselineSuccess:  round(a.BaselineSuccessRate, 4),
			AdjustedSuccess:  round(a.AdjustedSuccessRate, 4),
			AttritionFactors: AttritionFactors(a.AttritionFactors),
			EvidenceBase: EvidenceBase{
				Source: a.Population.EvidenceSource,
				Level:  a.Population.EvidenceLevel,
			},
		},
		Recommendations: recs,
		Predictions: Predictions{
			WithoutInterventions:   round(a.AdjustedSuccessRate, 4),
			WithInterventions:      round(a.SuccessWithInterventions, 4),
			AbsoluteImprovement:    round(a.Improvement(), 4),
			RelativeImprovementPct: relative,
		},
		BridgePeriodEstimate: BridgePeriodEstimate{
			MinimumDays:  a.BridgeDuration.Min(),
			MaximumDays:  a.BridgeDuration.Max(),
			TargetDays:   TargetBridgeDays,
			DelayFactors: append([]string{}, a.DelayFactors...),
		},
		Metadata: Metadata{
			ToolVersion:   meta.ToolVersion,
			Timestamp:     meta.Timestamp.Format(time.RFC3339),
			ConfigVersion: meta.ConfigVersion,
		},
	}
}

// AttritionFactors lays out the aggregation breakdown with method-specific
// keys, in the order the computation runs.
func AttritionFactors(f domain.AttritionFactors) domain.Section[any] {
	var contributions domain.Section[float64]
	for _, c := range f.Contributions {
		contributions.Set(c.Barrier, c.Value)
	}

	var out domain.Section[any]
	if f.Method == domain.MethodLogit {
		out.Set("method", string(f.Method))
		out.Set("baseline_attrition", f.BaselineAttrition)
		out.Set("baseline_logit", f.BaselineLogit)
		out.Set("barrier_logit_shifts", contributions)
		out.Set("barrier_count_penalty", f.BarrierCountPenalty)
		out.Set("adjusted_attrition", f.AdjustedAttrition)
		out.Set("adjusted_logit", f.AdjustedLogit)
	} else {
		out.Set("baseline_attrition", f.BaselineAttrition)
		out.Set("barrier_impacts", contributions)
		out.Set("barrier_count_penalty", f.BarrierCountPenalty)
		out.Set("total_adjustment", f.TotalAdjustment)
		out.Set("adjusted_attrition", f.AdjustedAttrition)
	}
	out.Set("best_case_floor_applied", f.BestCaseFloorApplied)
	return out
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
