package domain

// Recommendation is an intervention offered to the patient with its expected
// impact. ExpectedImprovement is in percentage points.
type Recommendation struct {
	Intervention             string   `json:"intervention"`
	InterventionName         string   `json:"intervention_name"`
	Priority                 Priority `json:"priority"`
	ExpectedImprovement      float64  `json:"expected_improvement"`
	ImplementationNotes      string   `json:"implementation_notes"`
	EvidenceLevel            string   `json:"evidence_level"`
	CostLevel                string   `json:"cost_level"`
	ImplementationComplexity string   `json:"implementation_complexity"`
	Mechanisms               []string `json:"mechanisms"`
	ConfidenceInterval       Interval `json:"confidence_interval"`
	Rationale                string   `json:"rationale"`
}

// BarrierContribution is the share of attrition attributed to one barrier.
// In linear mode Value is the probability impact; in logit mode it is the
// log-odds shift.
type BarrierContribution struct {
	Barrier string  `json:"barrier"`
	Value   float64 `json:"value"`
}

// AttritionFactors explains how the adjusted attrition was reached.
// Fields that do not apply to the method in use are left zero.
type AttritionFactors struct {
	Method               Method                `json:"method"`
	BaselineAttrition    float64               `json:"baseline_attrition"`
	BaselineLogit        float64               `json:"baseline_logit,omitempty"`
	Contributions        []BarrierContribution `json:"contributions"`
	BarrierCountPenalty  float64               `json:"barrier_count_penalty"`
	TotalAdjustment      float64               `json:"total_adjustment,omitempty"`
	AdjustedAttrition    float64               `json:"adjusted_attrition"`
	AdjustedLogit        float64               `json:"adjusted_logit,omitempty"`
	BestCaseFloorApplied bool                  `json:"best_case_floor_applied"`
}

// Assessment is the complete bridge period result for one patient.
type Assessment struct {
	BaselineSuccessRate      float64          `json:"baseline_success_rate"`
	AdjustedSuccessRate      float64          `json:"adjusted_success_rate"`
	RiskLabel                string           `json:"attrition_risk"`
	RiskCategory             RiskCategory     `json:"attrition_risk_category"`
	KeyBarriers              []string         `json:"key_barriers"`
	BarrierDetails           []Barrier        `json:"barrier_details"`
	Recommendations          []Recommendation `json:"recommended_interventions"`
	BridgeDuration           DayRange         `json:"estimated_bridge_duration_days"`
	SuccessWithInterventions float64          `json:"estimated_success_with_interventions"`
	ClinicalNotes            []string         `json:"clinical_notes"`
	Population               Population       `json:"population_info"`
	AttritionFactors         AttritionFactors `json:"attrition_factors"`
	DelayFactors             []string         `json:"delay_factors"`
}

// TopRecommendation returns the first recommendation, if any.
func (a *Assessment) TopRecommendation() (Recommendation, bool) {
	if len(a.Recommendations) == 0 {
		return Recommendation{}, false
	}
	return a.Recommendations[0], true
}

// Improvement is the absolute gain from adjusted success to success with interventions.
func (a *Assessment) Improvement() float64 {
	return a.SuccessWithInterventions - a.AdjustedSuccessRate
}
