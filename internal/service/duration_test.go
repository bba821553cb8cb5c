package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lai-prep-bridge/internal/domain"
)

func TestBridgeDuration(t *testing.T) {
	params := loadConfig(t).AlgorithmParameters

	tests := []struct {
		name    string
		profile domain.PatientProfile
		want    domain.DayRange
	}{
		{"Oral with recent test", profile("MSM", domain.PrEPOral, true), domain.DayRange{0, 1}},
		{"Oral without recent test", profile("MSM", domain.PrEPOral, false, "TRANSPORTATION", "CHILDCARE", "LEGAL_CONCERNS"), domain.DayRange{3, 7}},
		{"Naive with recent test", profile("MSM", domain.PrEPNaive, true), domain.DayRange{7, 14}},
		{"Naive without recent test", profile("MSM", domain.PrEPNaive, false, "TRANSPORTATION", "CHILDCARE"), domain.DayRange{14, 35}},
		{"Naive with many barriers", profile("MSM", domain.PrEPNaive, true, "TRANSPORTATION", "CHILDCARE", "LEGAL_CONCERNS"), domain.DayRange{7, 60}},
		{"Discontinued follows naive", profile("MSM", domain.PrEPDiscontinuedOral, false, "TRANSPORTATION", "CHILDCARE", "LEGAL_CONCERNS"), domain.DayRange{14, 60}},
		{"Duplicates are not extra barriers", profile("MSM", domain.PrEPNaive, true, "TRANSPORTATION", "TRANSPORTATION", "CHILDCARE"), domain.DayRange{7, 14}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BridgeDuration(params, tt.profile))
		})
	}

	assert.Equal(t, domain.DayRange{7, 14}, params.BridgeDurationNaiveRecentTest, "lookup table is not modified")
}

func TestDelayFactors(t *testing.T) {
	t.Run("None", func(t *testing.T) {
		assert.Empty(t, DelayFactors(profile("MSM", domain.PrEPOral, true)))
	})

	t.Run("All", func(t *testing.T) {
		p := profile("PWID", domain.PrEPNaive, false, "HOUSING_INSTABILITY", "TRANSPORTATION", "LEGAL_CONCERNS", "HEALTHCARE_DISCRIMINATION")
		p.InsuranceStatus = domain.InsuranceUninsured
		p.TransportationAccess = false
		p.ChildcareNeeds = true
		p.HealthcareSetting = "ACADEMIC_MEDICAL_CENTER"

		assert.Equal(t, []string{
			"HIV testing required (adds 3-7 days for results)",
			"Insurance authorization may be complex",
			"Transportation barriers may delay appointments",
			"Childcare coordination needed for appointments",
			"4 barriers present - multiple coordination challenges",
			"Complex healthcare system may extend navigation time",
		}, DelayFactors(p))
	})

	t.Run("Insurance", func(t *testing.T) {
		p := profile("ADOLESCENT", domain.PrEPNaive, true)
		p.InsuranceStatus = domain.InsuranceParental
		assert.Equal(t, []string{"Parental insurance may raise privacy concerns"}, DelayFactors(p))

		p.InsuranceStatus = domain.InsuranceUnderinsured
		assert.Equal(t, []string{"Insurance authorization may be complex"}, DelayFactors(p))
	})
}
