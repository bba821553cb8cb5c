package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lai-prep-bridge/internal/domain"
)

func sampleProfile() domain.PatientProfile {
	return domain.PatientProfile{
		PatientID:         "patient_0001",
		Population:        "MSM",
		Age:               28,
		PrEPStatus:        domain.PrEPNaive,
		Barriers:          []string{"TRANSPORTATION"},
		HealthcareSetting: "COMMUNITY_HEALTH_CENTER",
		InsuranceStatus:   domain.InsuranceInsured,
		RecentHIVTest:     true,
	}
}

func sampleAssessment() *domain.Assessment {
	return &domain.Assessment{
		BaselineSuccessRate: 0.55,
		AdjustedSuccessRate: 0.42999999999999994,
		RiskLabel:           "High attrition risk",
		RiskCategory:        domain.RiskCategory{Label: "High attrition risk", Icon: "🟠", ClinicalAction: "Assign navigation"},
		KeyBarriers:         []string{"TRANSPORTATION"},
		BarrierDetails:      []domain.Barrier{{Name: "Transportation barriers", Impact: 0.10, EvidenceLevel: "strong"}},
		Recommendations: []domain.Recommendation{
			{
				Intervention:             "MOBILE_DELIVERY",
				InterventionName:         "Mobile Delivery",
				Priority:                 domain.PriorityHigh,
				ExpectedImprovement:      12.000000000000002,
				EvidenceLevel:            "moderate",
				CostLevel:                "high",
				ImplementationComplexity: "high",
				Mechanisms:               []string{"remove_barriers", "increase_access"},
				ConfidenceInterval:       domain.Interval{Lower: 9.600000000000001, Upper: 14.400000000000002},
				Rationale:                "Addresses Transportation barriers barrier (+10% attrition impact).",
			},
		},
		BridgeDuration:           domain.DayRange{7, 14},
		SuccessWithInterventions: 0.51399999999999995,
		ClinicalNotes:            []string{"🟠 HIGH ATTRITION RISK: Assign navigation (57% attrition risk)"},
		Population:               domain.Population{Name: "Men who have sex with men", EvidenceLevel: "strong", EvidenceSource: "cohorts"},
		AttritionFactors: domain.AttritionFactors{
			Method:              domain.MethodLinear,
			BaselineAttrition:   0.45,
			Contributions:       []domain.BarrierContribution{{Barrier: "TRANSPORTATION", Value: 0.1}},
			BarrierCountPenalty: 0.02,
			TotalAdjustment:     0.12,
			AdjustedAttrition:   0.57,
		},
		DelayFactors: []string{},
	}
}

func TestExport(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	doc := Export(sampleProfile(), sampleAssessment(), Meta{Timestamp: now, ConfigVersion: "2.1.0-test"})

	assert.Equal(t, "Men who have sex with men", doc.PatientProfile.PopulationName)
	assert.Equal(t, []string{"Transportation barriers"}, doc.PatientProfile.BarrierNames)
	assert.Equal(t, "naive", doc.PatientProfile.PrEPStatus)

	assert.Equal(t, 0.43, doc.RiskAssessment.AdjustedSuccess)
	assert.Equal(t, EvidenceBase{Source: "cohorts", Level: "strong"}, doc.RiskAssessment.EvidenceBase)

	require.Len(t, doc.Recommendations, 1)
	rec := doc.Recommendations[0]
	assert.Equal(t, 12.0, rec.ExpectedImprovement)
	assert.Equal(t, ConfidenceInterval{Lower: 9.6, Upper: 14.4}, rec.ConfidenceInterval)
	assert.Equal(t, "High", rec.Priority)
	assert.Equal(t, "moderate", rec.Evidence)

	assert.Equal(t, Predictions{
		WithoutInterventions:   0.43,
		WithInterventions:      0.514,
		AbsoluteImprovement:    0.084,
		RelativeImprovementPct: 19.53,
	}, doc.Predictions)

	assert.Equal(t, BridgePeriodEstimate{MinimumDays: 7, MaximumDays: 14, TargetDays: 14, DelayFactors: []string{}}, doc.BridgePeriodEstimate)
	assert.Equal(t, Metadata{ToolVersion: ToolVersion, Timestamp: "2025-06-01T12:00:00Z", ConfigVersion: "2.1.0-test"}, doc.Metadata)
}

func TestExport_JSONLayout(t *testing.T) {
	doc := Export(sampleProfile(), sampleAssessment(), Meta{Timestamp: time.Now(), ConfigVersion: "x"})

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"patient_profile", "risk_assessment", "recommendations", "predictions", "bridge_period_estimate", "metadata"} {
		assert.Contains(t, decoded, key)
	}

	factors, err := json.Marshal(doc.RiskAssessment.AttritionFactors)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"baseline_attrition": 0.45,
		"barrier_impacts": {"TRANSPORTATION": 0.1},
		"barrier_count_penalty": 0.02,
		"total_adjustment": 0.12,
		"adjusted_attrition": 0.57,
		"best_case_floor_applied": false
	}`, string(factors))
	assert.Equal(t,
		`{"baseline_attrition":0.45,"barrier_impacts":{"TRANSPORTATION":0.1},"barrier_count_penalty":0.02,"total_adjustment":0.12,"adjusted_attrition":0.57,"best_case_floor_applied":false}`,
		string(factors), "keys follow the order of the computation")
}

func TestAttritionFactors_Logit(t *testing.T) {
	f := domain.AttritionFactors{
		Method:               domain.MethodLogit,
		BaselineAttrition:    0.45,
		BaselineLogit:        -0.2007,
		BarrierCountPenalty:  0,
		AdjustedAttrition:    0.45,
		AdjustedLogit:        -0.2007,
		BestCaseFloorApplied: true,
	}

	data, err := json.Marshal(AttritionFactors(f))
	require.NoError(t, err)
	assert.Equal(t,
		`{"method":"logit_space","baseline_attrition":0.45,"baseline_logit":-0.2007,"barrier_logit_shifts":{},"barrier_count_penalty":0,"adjusted_attrition":0.45,"adjusted_logit":-0.2007,"best_case_floor_applied":true}`,
		string(data))
}

func TestExport_ZeroAdjustedSuccess(t *testing.T) {
	a := sampleAssessment()
	a.AdjustedSuccessRate = 0
	a.SuccessWithInterventions = 0.2

	doc := Export(sampleProfile(), a, Meta{})
	assert.Zero(t, doc.Predictions.RelativeImprovementPct)
	assert.Equal(t, ToolVersion, doc.Metadata.ToolVersion)
	assert.NotEmpty(t, doc.Metadata.Timestamp)
}

func TestExport_DoesNotAlias(t *testing.T) {
	p := sampleProfile()
	a := sampleAssessment()

	doc := Export(p, a, Meta{})
	doc.PatientProfile.Barriers[0] = "changed"
	doc.Recommendations[0].Mechanisms[0] = "changed"

	assert.Equal(t, "TRANSPORTATION", p.Barriers[0])
	assert.Equal(t, "remove_barriers", a.Recommendations[0].Mechanisms[0])
}
