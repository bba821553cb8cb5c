package domain

// Configuration section names
const (
	SectionVersion             = "version"
	SectionPopulations         = "populations"
	SectionBarriers            = "barriers"
	SectionInterventions       = "interventions"
	SectionHealthcareSettings  = "healthcare_settings"
	SectionRiskCategories      = "risk_categories"
	SectionAlgorithmParameters = "algorithm_parameters"
	SectionClinicalGuidance    = "clinical_guidance"
)

// RequiredSections lists the top-level keys a configuration document must carry.
var RequiredSections = []string{
	SectionVersion,
	SectionPopulations,
	SectionBarriers,
	SectionInterventions,
	SectionHealthcareSettings,
	SectionRiskCategories,
	SectionAlgorithmParameters,
}

// FallbackRiskCategory is used when an attrition rate falls outside every band.
const FallbackRiskCategory = "VERY_HIGH"

// DefaultBestCaseSuccessFloor applies when algorithm_parameters omits the floor.
const DefaultBestCaseSuccessFloor = 0.85

// Configuration is the immutable parameter set of the risk model. It is loaded
// once and shared read-only by every assessment.
type Configuration struct {
	Version             string                     `json:"version"`
	Populations         Section[Population]        `json:"populations"`
	Barriers            Section[Barrier]           `json:"barriers"`
	Interventions       Section[Intervention]      `json:"interventions"`
	HealthcareSettings  Section[HealthcareSetting] `json:"healthcare_settings"`
	RiskCategories      Section[RiskCategory]      `json:"risk_categories"`
	AlgorithmParameters AlgorithmParameters        `json:"algorithm_parameters"`
	ClinicalGuidance    map[string]Guidance        `json:"clinical_guidance,omitempty"`

	// Source is the path the configuration was read from, if any.
	Source string `json:"-"`
}

// Population describes a patient population and its baseline bridge attrition.
type Population struct {
	Name              string    `json:"name"`
	BaselineAttrition float64   `json:"baseline_attrition"`
	AttritionRange    []float64 `json:"attrition_range,omitempty"`
	EvidenceLevel     string    `json:"evidence_level"`
	EvidenceSource    string    `json:"evidence_source"`
	ClinicalNotes     string    `json:"clinical_notes,omitempty"`
}

// BaselineSuccess returns 1 - baseline attrition.
func (p Population) BaselineSuccess() float64 {
	return 1 - p.BaselineAttrition
}

// Barrier is a structural or individual factor that adds attrition risk.
type Barrier struct {
	Name                string   `json:"name"`
	Impact              float64  `json:"impact"`
	EvidenceLevel       string   `json:"evidence_level"`
	EvidenceSource      string   `json:"evidence_source,omitempty"`
	AffectedPopulations []string `json:"affected_populations,omitempty"`
}

// Intervention is an evidence-based action that improves bridge success.
// A nil ApplicablePopulations means the intervention is not restricted.
type Intervention struct {
	Name                     string   `json:"name"`
	Improvement              float64  `json:"improvement"`
	EvidenceLevel            string   `json:"evidence_level"`
	CostLevel                string   `json:"cost_level"`
	ImplementationComplexity string   `json:"implementation_complexity"`
	Note                     string   `json:"note"`
	AddressesBarriers        []string `json:"addresses_barriers,omitempty"`
	ApplicablePopulations    []string `json:"applicable_populations,omitempty"`
}

// Addresses reports whether the intervention declares barrier in addresses_barriers.
func (i Intervention) Addresses(barrier string) bool {
	return containsString(i.AddressesBarriers, barrier)
}

// AppliesTo reports whether the intervention may be offered to population.
func (i Intervention) AppliesTo(population string) bool {
	if i.ApplicablePopulations == nil {
		return true
	}
	return containsString(i.ApplicablePopulations, population)
}

// HealthcareSetting is a care delivery context.
type HealthcareSetting struct {
	Name                     string   `json:"name"`
	Description              string   `json:"description,omitempty"`
	RecommendedInterventions []string `json:"recommended_interventions,omitempty"`
}

// RiskCategory is a half-open attrition band [ThresholdMin, ThresholdMax).
type RiskCategory struct {
	Label          string   `json:"label"`
	ThresholdMin   float64  `json:"threshold_min"`
	ThresholdMax   *float64 `json:"threshold_max,omitempty"`
	Icon           string   `json:"icon,omitempty"`
	ClinicalAction string   `json:"clinical_action,omitempty"`
	Color          string   `json:"color,omitempty"`
}

// Max returns the exclusive upper bound, defaulting to 1.0 when unset.
func (c RiskCategory) Max() float64 {
	if c.ThresholdMax == nil {
		return 1.0
	}
	return *c.ThresholdMax
}

// Contains reports whether rate falls inside the band.
func (c RiskCategory) Contains(rate float64) bool {
	return c.ThresholdMin <= rate && rate < c.Max()
}

// BarrierCountAdjustment is the step penalty keyed on barrier count.
type BarrierCountAdjustment struct {
	OneBarrier        float64 `json:"1_barrier"`
	TwoBarriers       float64 `json:"2_barriers"`
	ThreePlusBarriers float64 `json:"3_plus_barriers"`
}

// For returns the penalty for count barriers (0 for none).
func (a BarrierCountAdjustment) For(count int) float64 {
	switch {
	case count >= 3:
		return a.ThreePlusBarriers
	case count == 2:
		return a.TwoBarriers
	case count == 1:
		return a.OneBarrier
	default:
		return 0
	}
}

// AlgorithmParameters holds the numeric constants of the model.
type AlgorithmParameters struct {
	MaxAttritionCeiling                  float64                `json:"max_attrition_ceiling"`
	MaxSuccessRateWithInterventions      float64                `json:"max_success_rate_with_interventions"`
	InterventionDiminishingReturnsFactor float64                `json:"intervention_diminishing_returns_factor"`
	BarrierCountAdjustmentFactor         BarrierCountAdjustment `json:"barrier_count_adjustment_factor"`
	BestCaseSuccessFloor                 *float64               `json:"best_case_success_floor,omitempty"`
	BridgeDurationOralPrepRecentTest     DayRange               `json:"bridge_duration_oral_prep_recent_test"`
	BridgeDurationOralPrepNoRecentTest   DayRange               `json:"bridge_duration_oral_prep_no_recent_test"`
	BridgeDurationNaiveRecentTest        DayRange               `json:"bridge_duration_naive_recent_test"`
	BridgeDurationNaiveNoRecentTest      DayRange               `json:"bridge_duration_naive_no_recent_test"`
	MaximumBridgeDurationDays            int                    `json:"maximum_bridge_duration_days"`
}

// BestCaseFloor returns the configured best-case success floor or the default.
func (p AlgorithmParameters) BestCaseFloor() float64 {
	if p.BestCaseSuccessFloor == nil {
		return DefaultBestCaseSuccessFloor
	}
	return *p.BestCaseSuccessFloor
}

// Guidance is a clinical guidance message keyed in clinical_guidance.
type Guidance struct {
	Message string `json:"message"`
}

// Guidance keys consulted when building clinical notes
const (
	GuidanceOralPrEPTransition = "oral_prep_transition_priority"
	GuidanceDiscontinuedOral   = "discontinued_oral_prep"
	GuidanceEvidenceBase       = "evidence_base"
)

// Population returns the population record for key.
func (c *Configuration) Population(key string) (Population, error) {
	p, ok := c.Populations.Get(key)
	if !ok {
		return Population{}, UnknownKeyError(SectionPopulations, key)
	}
	return p, nil
}

// Barrier returns the barrier record for key.
func (c *Configuration) Barrier(key string) (Barrier, error) {
	b, ok := c.Barriers.Get(key)
	if !ok {
		return Barrier{}, UnknownKeyError(SectionBarriers, key)
	}
	return b, nil
}

// Intervention returns the intervention record for key.
func (c *Configuration) Intervention(key string) (Intervention, error) {
	i, ok := c.Interventions.Get(key)
	if !ok {
		return Intervention{}, UnknownKeyError(SectionInterventions, key)
	}
	return i, nil
}

// Setting returns the healthcare setting record for key.
func (c *Configuration) Setting(key string) (HealthcareSetting, error) {
	s, ok := c.HealthcareSettings.Get(key)
	if !ok {
		return HealthcareSetting{}, UnknownKeyError(SectionHealthcareSettings, key)
	}
	return s, nil
}

// RiskCategory returns the risk category for key.
func (c *Configuration) RiskCategory(key string) (RiskCategory, error) {
	rc, ok := c.RiskCategories.Get(key)
	if !ok {
		return RiskCategory{}, UnknownKeyError(SectionRiskCategories, key)
	}
	return rc, nil
}

// GuidanceMessage returns the message stored under key, if any.
func (c *Configuration) GuidanceMessage(key string) (string, bool) {
	g, ok := c.ClinicalGuidance[key]
	if !ok || g.Message == "" {
		return "", false
	}
	return g.Message, true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
