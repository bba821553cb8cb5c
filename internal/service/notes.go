package service

import (
	"fmt"
	"strings"

	"github.com/lai-prep-bridge/internal/domain"
)

// ClinicalNotes builds the guidance lines shown alongside an assessment
func ClinicalNotes(cfg *domain.Configuration, profile domain.PatientProfile, population domain.Population, category domain.RiskCategory, attrition float64) []string {
	notes := []string{
		fmt.Sprintf("%s %s: %s (%s attrition risk)",
			category.Icon, strings.ToUpper(category.Label), category.ClinicalAction, percent0(attrition)),
	}

	if population.ClinicalNotes != "" {
		notes = append(notes, "📋 "+population.ClinicalNotes)
	}

	var guidanceKey string
	switch profile.PrEPStatus {
	case domain.PrEPOral:
		guidanceKey = domain.GuidanceOralPrEPTransition
	case domain.PrEPDiscontinuedOral:
		guidanceKey = domain.GuidanceDiscontinuedOral
	}
	if guidanceKey != "" {
		if msg, ok := cfg.GuidanceMessage(guidanceKey); ok {
			notes = append(notes, "💊 "+msg)
		}
	}

	if n := profile.BarrierCount(); n > 3 {
		notes = append(notes, fmt.Sprintf("⚠️  %d barriers identified - multiple intensive interventions will be required", n))
	}

	if msg, ok := cfg.GuidanceMessage(domain.GuidanceEvidenceBase); ok {
		notes = append(notes, "📊 "+msg)
	}

	return notes
}
