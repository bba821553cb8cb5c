package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/lai-prep-bridge/internal/domain"
)

const (
	populationPWID        = "PWID"
	settingHarmReduction  = "HARM_REDUCTION"
	highBaselineAttrition = 0.50
	confidenceWidth       = 0.20
	maxConfidenceUpper    = 50.0
)

// mechanismCategories groups interventions by how they act on the bridge
// period. Order matters: tags are emitted in this order.
var mechanismCategories = []struct {
	tag           string
	interventions []string
}{
	{"eliminate_bridge", []string{domain.InterventionOralToInjectable, domain.InterventionSameDaySwitching}},
	{"compress_bridge", []string{domain.InterventionAcceleratedTesting, "EXPEDITED_AUTHORIZATION"}},
	{"navigate_bridge", []string{domain.InterventionPatientNavigation, domain.InterventionPeerNavigation, domain.InterventionTextMessageNavigation}},
	{"remove_barriers", []string{"TRANSPORTATION_SUPPORT", "CHILDCARE_SUPPORT", "MOBILE_DELIVERY"}},
	{"system_level", []string{domain.InterventionHarmReductionIntegration, "BUNDLED_PAYMENT", "TELEHEALTH_COUNSELING"}},
}

// keywordMechanisms adds a tag when any of the keywords occurs in an
// intervention key.
var keywordMechanisms = []struct {
	keywords []string
	tag      string
}{
	{[]string{"NAVIGATION"}, "coordination"},
	{[]string{"SUPPORT"}, "remove_barriers"},
	{[]string{"TESTING", "AUTHORIZATION"}, "reduce_delays"},
	{[]string{"HARM_REDUCTION", "PEER"}, "reduce_stigma"},
	{[]string{"MOBILE", "TELEHEALTH"}, "increase_access"},
}

// Mechanisms derives the mechanism tags of an intervention from its key. Tags
// are unique; an intervention that matches nothing is tagged "general".
func Mechanisms(interventionKey string) []string {
	var tags []string
	add := func(tag string) {
		for _, t := range tags {
			if t == tag {
				return
			}
		}
		tags = append(tags, tag)
	}

	for _, category := range mechanismCategories {
		for _, key := range category.interventions {
			if key == interventionKey {
				add(category.tag)
				break
			}
		}
	}
	for _, km := range keywordMechanisms {
		for _, kw := range km.keywords {
			if strings.Contains(interventionKey, kw) {
				add(km.tag)
				break
			}
		}
	}

	if len(tags) == 0 {
		return []string{"general"}
	}
	return tags
}

// ConfidenceInterval returns the ±20% band around an improvement expressed
// in percentage points, clamped to [0, 50].
func ConfidenceInterval(improvement float64) domain.Interval {
	width := improvement * confidenceWidth
	return domain.Interval{
		Lower: math.Max(0, improvement-width),
		Upper: math.Min(maxConfidenceUpper, improvement+width),
	}
}

// Recommender generates intervention candidates for a profile
type Recommender struct {
	cfg *domain.Configuration
}

// NewRecommender creates a recommender over the interventions in cfg
func NewRecommender(cfg *domain.Configuration) *Recommender {
	return &Recommender{cfg: cfg}
}

// candidateList accumulates candidates and tracks which interventions are
// already present.
type candidateList struct {
	items   []domain.Recommendation
	present map[string]bool
}

func (l *candidateList) has(key string) bool {
	return l.present[key]
}

func (l *candidateList) add(rec domain.Recommendation) {
	l.items = append(l.items, rec)
	l.present[rec.Intervention] = true
}

// Candidates applies the recommendation rules to profile in order. The
// returned list is unsorted and may contain overlapping mechanisms.
func (r *Recommender) Candidates(profile domain.PatientProfile) ([]domain.Recommendation, error) {
	population, err := r.cfg.Population(profile.Population)
	if err != nil {
		return nil, err
	}
	setting, err := r.cfg.Setting(profile.HealthcareSetting)
	if err != nil {
		return nil, err
	}

	list := &candidateList{present: make(map[string]bool)}
	add := func(key string, priority domain.Priority, rationale string, mechanisms []string) error {
		rec, err := r.recommendation(key, priority, rationale, mechanisms)
		if err != nil {
			return err
		}
		list.add(rec)
		return nil
	}

	if profile.PrEPStatus == domain.PrEPOral {
		if profile.RecentHIVTest {
			err = add(domain.InterventionSameDaySwitching, domain.PriorityCritical,
				"Patient on oral PrEP with recent HIV test - can eliminate bridge period entirely with same-day switching protocol.",
				[]string{"eliminate_bridge", "reduce_appointments"})
		} else {
			err = add(domain.InterventionOralToInjectable, domain.PriorityCritical,
				"Patient on oral PrEP - oral-to-injectable transition has 1.5-fold higher success rate than PrEP-naive initiation.",
				[]string{"eliminate_bridge", "leverage_engagement"})
		}
		if err != nil {
			return nil, err
		}
	}

	if !profile.RecentHIVTest {
		if err := add(domain.InterventionAcceleratedTesting, domain.PriorityHigh,
			"RNA testing reduces window period from 33-45 days to 10-14 days, compressing bridge duration.",
			[]string{"compress_bridge", "reduce_delays"}); err != nil {
			return nil, err
		}
	}

	if population.BaselineAttrition > highBaselineAttrition {
		if profile.Population == populationPWID {
			err = add(domain.InterventionPeerNavigation, domain.PriorityHigh,
				fmt.Sprintf("PWID population with high attrition risk (%s) - peer navigation particularly effective for building trust.",
					percent0(population.BaselineAttrition)),
				[]string{"navigate_bridge", "peer_support", "reduce_stigma"})
		} else {
			err = add(domain.InterventionPatientNavigation, domain.PriorityHigh,
				fmt.Sprintf("%s with high attrition risk (%s) - navigation demonstrates 1.5-fold improvement in initiation.",
					population.Name, percent0(population.BaselineAttrition)),
				[]string{"navigate_bridge", "coordination", "barrier_identification"})
		}
		if err != nil {
			return nil, err
		}
	}

	for _, barrierKey := range profile.DistinctBarriers() {
		barrier, err := r.cfg.Barrier(barrierKey)
		if err != nil {
			return nil, err
		}
		rationale := fmt.Sprintf("Addresses %s barrier (+%.0f%% attrition impact).", barrier.Name, barrier.Impact*100)

		for _, key := range r.cfg.Interventions.Keys() {
			intervention, _ := r.cfg.Interventions.Get(key)
			if !intervention.Addresses(barrierKey) || list.has(key) || !intervention.AppliesTo(profile.Population) {
				continue
			}
			if err := add(key, domain.PriorityHigh, rationale, Mechanisms(key)); err != nil {
				return nil, err
			}
		}
	}

	if profile.Population == populationPWID && profile.HealthcareSetting != settingHarmReduction && !list.has(domain.InterventionHarmReductionIntegration) {
		if err := add(domain.InterventionHarmReductionIntegration, domain.PriorityCritical,
			"PWID population - harm reduction integration essential for trust-building and low-barrier access.",
			[]string{"system_level", "reduce_stigma", "leverage_trust"}); err != nil {
			return nil, err
		}
	}

	if !list.has(domain.InterventionTextMessageNavigation) {
		if err := add(domain.InterventionTextMessageNavigation, domain.PriorityModerate,
			"Low-cost universal intervention - SMS reminders improve appointment attendance by 20-30%.",
			[]string{"navigate_bridge", "reminder_system"}); err != nil {
			return nil, err
		}
	}

	for _, key := range setting.RecommendedInterventions {
		if list.has(key) {
			continue
		}
		intervention, err := r.cfg.Intervention(key)
		if err != nil {
			return nil, err
		}
		if !intervention.AppliesTo(profile.Population) {
			continue
		}
		if err := add(key, domain.PriorityModerate, fmt.Sprintf("Optimized for %s setting.", setting.Name), Mechanisms(key)); err != nil {
			return nil, err
		}
	}

	return list.items, nil
}

func (r *Recommender) recommendation(key string, priority domain.Priority, rationale string, mechanisms []string) (domain.Recommendation, error) {
	intervention, err := r.cfg.Intervention(key)
	if err != nil {
		return domain.Recommendation{}, err
	}
	improvement := intervention.Improvement * 100

	return domain.Recommendation{
		Intervention:             key,
		InterventionName:         intervention.Name,
		Priority:                 priority,
		ExpectedImprovement:      improvement,
		ImplementationNotes:      intervention.Note,
		EvidenceLevel:            intervention.EvidenceLevel,
		CostLevel:                intervention.CostLevel,
		ImplementationComplexity: intervention.ImplementationComplexity,
		Mechanisms:               mechanisms,
		ConfidenceInterval:       ConfidenceInterval(improvement),
		Rationale:                rationale,
	}, nil
}

// percent0 formats a fraction as a whole percentage, e.g. 0.75 as "75%".
func percent0(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}
