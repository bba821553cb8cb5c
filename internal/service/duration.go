package service

import (
	"fmt"

	"github.com/lai-prep-bridge/internal/domain"
)

const academicMedicalCenter = "ACADEMIC_MEDICAL_CENTER"

// BridgeDuration looks up the expected bridge period for a profile. Naive and
// discontinued profiles with more than two barriers have their maximum raised
// to the configured ceiling; the minimum is never changed.
func BridgeDuration(params domain.AlgorithmParameters, profile domain.PatientProfile) domain.DayRange {
	if profile.PrEPStatus == domain.PrEPOral {
		if profile.RecentHIVTest {
			return params.BridgeDurationOralPrepRecentTest
		}
		return params.BridgeDurationOralPrepNoRecentTest
	}

	days := params.BridgeDurationNaiveNoRecentTest
	if profile.RecentHIVTest {
		days = params.BridgeDurationNaiveRecentTest
	}
	if profile.BarrierCount() > 2 {
		days[1] = params.MaximumBridgeDurationDays
	}
	return days
}

// DelayFactors lists the circumstances likely to extend the bridge period
func DelayFactors(profile domain.PatientProfile) []string {
	factors := []string{}

	if !profile.RecentHIVTest {
		factors = append(factors, "HIV testing required (adds 3-7 days for results)")
	}

	switch profile.InsuranceStatus {
	case domain.InsuranceUninsured, domain.InsuranceUnderinsured:
		factors = append(factors, "Insurance authorization may be complex")
	case domain.InsuranceParental:
		factors = append(factors, "Parental insurance may raise privacy concerns")
	}

	if !profile.TransportationAccess {
		factors = append(factors, "Transportation barriers may delay appointments")
	}
	if profile.ChildcareNeeds {
		factors = append(factors, "Childcare coordination needed for appointments")
	}
	if n := profile.BarrierCount(); n > 3 {
		factors = append(factors, fmt.Sprintf("%d barriers present - multiple coordination challenges", n))
	}
	if profile.HealthcareSetting == academicMedicalCenter {
		factors = append(factors, "Complex healthcare system may extend navigation time")
	}

	return factors
}
