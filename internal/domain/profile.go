package domain

// Defaults applied to patient input that omits the field
const (
	DefaultHealthcareSetting = "COMMUNITY_HEALTH_CENTER"
	DefaultInsuranceStatus   = InsuranceInsured
)

// PatientProfile holds the characteristics that affect bridge period success.
// Population, barrier and setting fields are keys into the Configuration.
type PatientProfile struct {
	PatientID            string          `json:"patient_id,omitempty"`
	Population           string          `json:"population"`
	Age                  int             `json:"age"`
	PrEPStatus           PrEPStatus      `json:"current_prep_status"`
	Barriers             []string        `json:"barriers"`
	HealthcareSetting    string          `json:"healthcare_setting"`
	InsuranceStatus      InsuranceStatus `json:"insurance_status"`
	RecentHIVTest        bool            `json:"recent_hiv_test"`
	TransportationAccess bool            `json:"transportation_access"`
	ChildcareNeeds       bool            `json:"childcare_needs"`
}

// DistinctBarriers returns the barrier keys with duplicates removed, keeping
// the order of first occurrence.
func (p PatientProfile) DistinctBarriers() []string {
	if len(p.Barriers) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(p.Barriers))
	out := make([]string, 0, len(p.Barriers))
	for _, b := range p.Barriers {
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// BarrierCount is the number of distinct barriers.
func (p PatientProfile) BarrierCount() int {
	return len(p.DistinctBarriers())
}

// IsBestCase reports whether the profile qualifies for bridge elimination:
// currently on oral PrEP, tested recently and free of barriers.
func (p PatientProfile) IsBestCase() bool {
	return p.PrEPStatus == PrEPOral && p.RecentHIVTest && len(p.Barriers) == 0
}
