package service

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lai-prep-bridge/internal/domain"
)

func newEngine(t *testing.T, useLogit bool) *Engine {
	t.Helper()
	engine, err := NewEngine(loadConfig(t), nil, WithLogit(useLogit))
	require.NoError(t, err)
	return engine
}

func pwidScenario() domain.PatientProfile {
	p := profile("PWID", domain.PrEPNaive, false, "HOUSING_INSTABILITY", "TRANSPORTATION", "LEGAL_CONCERNS", "HEALTHCARE_DISCRIMINATION")
	p.Age = 35
	p.InsuranceStatus = domain.InsuranceUninsured
	p.TransportationAccess = false
	return p
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil, nil)
	assert.True(t, domain.IsConfigurationError(err))

	failing := func(*Engine) error { return errors.New("bad option") }
	_, err = NewEngine(loadConfig(t), nil, failing)
	assert.EqualError(t, err, "bad option")

	assert.Equal(t, domain.MethodLinear, newEngine(t, false).Method())
	assert.Equal(t, domain.MethodLogit, newEngine(t, true).Method())
}

func TestEngine_BestCaseScenario(t *testing.T) {
	for _, useLogit := range []bool{false, true} {
		engine := newEngine(t, useLogit)
		p := profile("MSM", domain.PrEPOral, true)
		p.Age = 28

		a, err := engine.Assess(p)
		require.NoError(t, err)

		top, ok := a.TopRecommendation()
		require.True(t, ok)
		assert.Equal(t, domain.InterventionSameDaySwitching, top.Intervention)
		assert.Equal(t, domain.PriorityCritical, top.Priority)
		assert.GreaterOrEqual(t, a.AdjustedSuccessRate, 0.85)
		assert.True(t, a.AttritionFactors.BestCaseFloorApplied)
		assert.Equal(t, "Low attrition risk", a.RiskLabel)
		assert.Equal(t, domain.DayRange{0, 1}, a.BridgeDuration)
		assert.InDelta(t, 0.95, a.SuccessWithInterventions, 1e-9)
		assert.Empty(t, a.DelayFactors)
	}
}

func TestEngine_BestCaseFloorForEveryPopulation(t *testing.T) {
	cfg := loadConfig(t)
	for _, useLogit := range []bool{false, true} {
		engine, err := NewEngine(cfg, nil, WithLogit(useLogit))
		require.NoError(t, err)

		for _, pop := range cfg.Populations.Keys() {
			a, err := engine.Assess(profile(pop, domain.PrEPOral, true))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, a.AdjustedSuccessRate, cfg.AlgorithmParameters.BestCaseFloor(), pop)
		}
	}

	// one barrier is enough to lose the floor
	a, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	assessment, err := a.Assess(profile("PWID", domain.PrEPOral, true, "SCHEDULING_CONFLICTS"))
	require.NoError(t, err)
	assert.False(t, assessment.AttritionFactors.BestCaseFloorApplied)
	assert.Less(t, assessment.AdjustedSuccessRate, 0.85)
}

func TestEngine_HighBarrierScenario(t *testing.T) {
	tests := []struct {
		name         string
		useLogit     bool
		wantAdjusted float64
		wantWith     float64
	}{
		{"Linear", false, 0.05, 0.3146},
		{"Logit", true, 0.0733, 0.3379},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := newEngine(t, tt.useLogit).Assess(pwidScenario())
			require.NoError(t, err)

			assert.Equal(t, "Very high attrition risk", a.RiskLabel)
			assert.InDelta(t, tt.wantAdjusted, a.AdjustedSuccessRate, 1e-4)
			assert.InDelta(t, tt.wantWith, a.SuccessWithInterventions, 1e-4)
			assert.InDelta(t, 0.25, a.BaselineSuccessRate, 1e-9)

			keys := candidateKeys(a.Recommendations)
			assert.Equal(t, []string{domain.InterventionHarmReductionIntegration, domain.InterventionPeerNavigation, "MOBILE_DELIVERY", domain.InterventionAcceleratedTesting, "TRANSPORTATION_SUPPORT"}, keys)
			assert.InDelta(t, 10.8, a.Recommendations[1].ExpectedImprovement, 1e-9)

			assert.Equal(t, domain.DayRange{14, 60}, a.BridgeDuration)
			assert.Contains(t, a.DelayFactors, "4 barriers present - multiple coordination challenges")
			assert.Contains(t, a.DelayFactors, "Insurance authorization may be complex")
			assert.Len(t, a.ClinicalNotes, 4)
			assert.Equal(t, "People who inject drugs", a.Population.Name)
		})
	}
}

func TestEngine_SortStability(t *testing.T) {
	a, err := newEngine(t, false).Assess(profile("MSM", domain.PrEPOral, true))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{domain.InterventionSameDaySwitching, domain.InterventionPatientNavigation, "TRANSPORTATION_SUPPORT", "BUNDLED_PAYMENT", domain.InterventionTextMessageNavigation},
		candidateKeys(a.Recommendations),
		"equal priority and improvement keep generation order")
}

func TestEngine_UnknownKeys(t *testing.T) {
	engine := newEngine(t, false)

	tests := []struct {
		name        string
		mutate      func(p *domain.PatientProfile)
		wantSection string
		wantKey     string
	}{
		{"Population", func(p *domain.PatientProfile) { p.Population = "MARTIANS" }, domain.SectionPopulations, "MARTIANS"},
		{"Barrier", func(p *domain.PatientProfile) { p.Barriers = []string{"TRANSPORTATION", "TELEPORTATION"} }, domain.SectionBarriers, "TELEPORTATION"},
		{"Setting", func(p *domain.PatientProfile) { p.HealthcareSetting = "SPACESHIP" }, domain.SectionHealthcareSettings, "SPACESHIP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile("MSM", domain.PrEPNaive, true)
			tt.mutate(&p)

			a, err := engine.Assess(p)
			assert.Nil(t, a)

			var ce *domain.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, domain.ErrUnknownKey, ce.Code)
			assert.Equal(t, tt.wantSection, ce.Section)
			assert.Equal(t, tt.wantKey, ce.Key)
		})
	}
}

func TestEngine_InvalidStatus(t *testing.T) {
	engine := newEngine(t, false)

	p := profile("MSM", domain.PrEPStatus("weekly"), true)
	_, err := engine.Assess(p)

	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, domain.FieldPrEPStatus, ve.Field)
}

func TestEngine_Bounds(t *testing.T) {
	cfg := loadConfig(t)
	barriers := cfg.Barriers.Keys()
	statuses := []domain.PrEPStatus{domain.PrEPNaive, domain.PrEPOral, domain.PrEPDiscontinuedOral}
	maxSuccess := cfg.AlgorithmParameters.MaxSuccessRateWithInterventions

	for _, useLogit := range []bool{false, true} {
		engine, err := NewEngine(cfg, nil, WithLogit(useLogit))
		require.NoError(t, err)

		for _, pop := range cfg.Populations.Keys() {
			for _, status := range statuses {
				for n := 0; n <= len(barriers); n++ {
					p := profile(pop, status, n%2 == 0, barriers[:n]...)
					a, err := engine.Assess(p)
					require.NoError(t, err)

					if useLogit {
						assert.Greater(t, a.AdjustedSuccessRate, 0.0)
						assert.Less(t, a.AdjustedSuccessRate, 1.0)
					} else {
						assert.GreaterOrEqual(t, a.AdjustedSuccessRate, 0.0)
						assert.LessOrEqual(t, a.AdjustedSuccessRate, 1.0)
					}
					assert.LessOrEqual(t, a.SuccessWithInterventions, maxSuccess)
					assert.GreaterOrEqual(t, a.SuccessWithInterventions, a.AdjustedSuccessRate)
					assert.LessOrEqual(t, len(a.Recommendations), MaxRecommendations)
					assert.LessOrEqual(t, len(a.KeyBarriers), 5)
					assert.Len(t, a.BarrierDetails, len(a.KeyBarriers))
				}
			}
		}
	}
}

func TestEngine_MechanismDiversity(t *testing.T) {
	cfg := loadConfig(t)
	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)
	recommender := NewRecommender(cfg)
	barriers := cfg.Barriers.Keys()

	for _, pop := range cfg.Populations.Keys() {
		for _, setting := range cfg.HealthcareSettings.Keys() {
			for n := 0; n <= len(barriers); n += 3 {
				p := profile(pop, domain.PrEPNaive, false, barriers[:n]...)
				p.HealthcareSetting = setting

				candidates, err := recommender.Candidates(p)
				require.NoError(t, err)
				if len(candidates) < 3 || len(mechanismUnion(candidates)) < 2 {
					continue
				}

				a, err := engine.Assess(p)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, len(mechanismUnion(a.Recommendations[:3])), 2, "%s in %s", pop, setting)
			}
		}
	}
}

func mechanismUnion(recs []domain.Recommendation) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range recs {
		for _, m := range r.Mechanisms {
			out[m] = struct{}{}
		}
	}
	return out
}

func TestEngine_Idempotent(t *testing.T) {
	engine := newEngine(t, true)

	first, err := engine.Assess(pwidScenario())
	require.NoError(t, err)
	second, err := engine.Assess(pwidScenario())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_DoesNotModifyProfile(t *testing.T) {
	engine := newEngine(t, false)
	p := profile("MSM", domain.PrEPNaive, false, "TRANSPORTATION", "CHILDCARE", "TRANSPORTATION")
	barriers := append([]string(nil), p.Barriers...)

	a, err := engine.Assess(p)
	require.NoError(t, err)

	assert.Equal(t, barriers, p.Barriers)
	assert.Equal(t, barriers, a.KeyBarriers, "display keeps the list as given")
	assert.Len(t, a.AttritionFactors.Contributions, 2, "scoring treats the list as a set")

	a.KeyBarriers[0] = "changed"
	assert.Equal(t, "TRANSPORTATION", p.Barriers[0])
}

func TestEngine_KeyBarriersCapped(t *testing.T) {
	cfg := loadConfig(t)
	engine, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	all := cfg.Barriers.Keys()
	a, err := engine.Assess(profile("GENERAL", domain.PrEPNaive, true, all...))
	require.NoError(t, err)

	assert.Equal(t, all[:5], a.KeyBarriers)
	require.Len(t, a.BarrierDetails, 5)
	assert.Equal(t, "Transportation barriers", a.BarrierDetails[0].Name)
}

func TestEngine_Logging(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	engine, err := NewEngine(loadConfig(t), logger)
	require.NoError(t, err)

	p := profile("MSM", domain.PrEPOral, true)
	p.PatientID = "patient_0001"
	_, err = engine.Assess(p)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "Assessment completed", entry.Message)
	assert.Equal(t, "patient_0001", entry.Data["patient_id"])
	assert.Equal(t, domain.InterventionSameDaySwitching, entry.Data["top_intervention"])

	_, err = engine.Assess(profile("MARTIANS", domain.PrEPOral, true))
	require.Error(t, err)
	assert.Equal(t, "Rejected patient profile", hook.LastEntry().Message)
}

func TestAssessPatientJSON(t *testing.T) {
	cfg := loadConfig(t)
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	raw := map[string]any{
		"patient_id":            "p-17",
		"population":            "PWID",
		"age":                   35.0,
		"current_prep_status":   "naive",
		"barriers":              "HOUSING_INSTABILITY, TRANSPORTATION, LEGAL_CONCERNS, HEALTHCARE_DISCRIMINATION",
		"insurance_status":      "uninsured",
		"recent_hiv_test":       false,
		"transportation_access": false,
	}

	doc, err := AssessPatientJSON(raw, cfg, false, now)
	require.NoError(t, err)

	assert.Equal(t, "p-17", doc.PatientProfile.PatientID)
	assert.Equal(t, "People who inject drugs", doc.PatientProfile.PopulationName)
	assert.Len(t, doc.PatientProfile.BarrierNames, 4)
	assert.Equal(t, "Very high attrition risk", doc.RiskAssessment.Level)
	assert.Equal(t, 0.05, doc.Predictions.WithoutInterventions)
	assert.Equal(t, 0.3146, doc.Predictions.WithInterventions)
	assert.Equal(t, "2025-03-14T09:30:00Z", doc.Metadata.Timestamp)
	assert.Equal(t, cfg.Version, doc.Metadata.ConfigVersion)
	assert.Equal(t, "2.1.0", doc.Metadata.ToolVersion)

	_, err = AssessPatientJSON(map[string]any{"population": "MSM", "age": 20, "current_prep_status": "naive", "barriers": "TELEPORTATION"}, cfg, true, now)
	assert.True(t, domain.IsConfigurationError(err))

	_, err = AssessPatientJSON(map[string]any{"population": "MSM"}, cfg, false, now)
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))
}
