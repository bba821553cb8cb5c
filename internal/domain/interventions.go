package domain

// Intervention keys the recommendation rules refer to directly
const (
	InterventionSameDaySwitching         = "SAME_DAY_SWITCHING"
	InterventionOralToInjectable         = "ORAL_TO_INJECTABLE"
	InterventionAcceleratedTesting       = "ACCELERATED_TESTING"
	InterventionPatientNavigation        = "PATIENT_NAVIGATION"
	InterventionPeerNavigation           = "PEER_NAVIGATION"
	InterventionHarmReductionIntegration = "HARM_REDUCTION_INTEGRATION"
	InterventionTextMessageNavigation    = "TEXT_MESSAGE_NAVIGATION"
)

// RuleInterventions lists every intervention key named by a recommendation
// rule. A configuration without one of them fails at assessment time for the
// profiles that trigger the rule.
var RuleInterventions = []string{
	InterventionSameDaySwitching,
	InterventionOralToInjectable,
	InterventionAcceleratedTesting,
	InterventionPatientNavigation,
	InterventionPeerNavigation,
	InterventionHarmReductionIntegration,
	InterventionTextMessageNavigation,
}
