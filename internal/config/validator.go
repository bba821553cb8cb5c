package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/lai-prep-bridge/internal/domain"
)

// Standard vocabulary for evidence, cost and complexity levels
var (
	ValidEvidenceLevels   = []string{"strong", "moderate", "emerging"}
	ValidCostLevels       = []string{"low", "medium", "high"}
	ValidComplexityLevels = []string{"low", "medium", "high"}
)

const thresholdTolerance = 1e-9

// semanticIssues returns the cross-reference and risk band violations of a
// decoded configuration, in a stable order.
func semanticIssues(cfg *domain.Configuration) []*domain.ConfigurationError {
	var issues []*domain.ConfigurationError

	cfg.Barriers.Each(func(key string, b domain.Barrier) {
		for _, pop := range b.AffectedPopulations {
			if !cfg.Populations.Has(pop) {
				issues = append(issues, domain.InvalidReferenceError(domain.SectionBarriers+"/"+key, domain.SectionPopulations, pop))
			}
		}
	})

	cfg.Interventions.Each(func(key string, i domain.Intervention) {
		owner := domain.SectionInterventions + "/" + key
		for _, pop := range i.ApplicablePopulations {
			if !cfg.Populations.Has(pop) {
				issues = append(issues, domain.InvalidReferenceError(owner, domain.SectionPopulations, pop))
			}
		}
		for _, b := range i.AddressesBarriers {
			if !cfg.Barriers.Has(b) {
				issues = append(issues, domain.InvalidReferenceError(owner, domain.SectionBarriers, b))
			}
		}
	})

	cfg.HealthcareSettings.Each(func(key string, s domain.HealthcareSetting) {
		for _, i := range s.RecommendedInterventions {
			if !cfg.Interventions.Has(i) {
				issues = append(issues, domain.InvalidReferenceError(domain.SectionHealthcareSettings+"/"+key, domain.SectionInterventions, i))
			}
		}
	})

	if !cfg.RiskCategories.Has(domain.FallbackRiskCategory) {
		ce := domain.NewConfigurationError(
			domain.ErrInvalidConfig,
			fmt.Sprintf("risk_categories must define %s", domain.FallbackRiskCategory),
			nil,
		)
		ce.Section = domain.SectionRiskCategories
		issues = append(issues, ce)
	}

	for _, msg := range bandProblems(cfg) {
		ce := domain.NewConfigurationError(domain.ErrInvalidConfig, msg, nil)
		ce.Section = domain.SectionRiskCategories
		issues = append(issues, ce)
	}

	return issues
}

type band struct {
	key      string
	min, max float64
}

func sortedBands(cfg *domain.Configuration) []band {
	bands := make([]band, 0, cfg.RiskCategories.Len())
	cfg.RiskCategories.Each(func(key string, rc domain.RiskCategory) {
		bands = append(bands, band{key: key, min: rc.ThresholdMin, max: rc.Max()})
	})
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].min < bands[j].min })
	return bands
}

// bandProblems reports inverted bands and gaps or overlaps between adjacent
// bands. Bands must tile their range so the first match is unambiguous.
func bandProblems(cfg *domain.Configuration) []string {
	var problems []string
	bands := sortedBands(cfg)
	for _, b := range bands {
		if b.max <= b.min {
			problems = append(problems, fmt.Sprintf("risk category %s has threshold_max %.4g <= threshold_min %.4g", b.key, b.max, b.min))
		}
	}
	for i := 0; i+1 < len(bands); i++ {
		cur, next := bands[i], bands[i+1]
		switch {
		case cur.max < next.min-thresholdTolerance:
			problems = append(problems, fmt.Sprintf("risk category threshold gap between %s and %s (%.4g to %.4g)", cur.key, next.key, cur.max, next.min))
		case cur.max > next.min+thresholdTolerance:
			problems = append(problems, fmt.Sprintf("risk category threshold overlap between %s and %s (%.4g > %.4g)", cur.key, next.key, cur.max, next.min))
		}
	}
	return problems
}

// Report is the outcome of Validate. Warnings flag unusual but usable values;
// only Errors make a configuration invalid.
type Report struct {
	Path     string   `json:"path"`
	Version  string   `json:"version,omitempty"`
	Info     []string `json:"info"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`

	// Config is set when the document decoded successfully.
	Config *domain.Configuration `json:"-"`
}

// Valid reports whether no errors were found.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

func (r *Report) info(format string, args ...any) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Validate checks the configuration file at path and collects every problem
// instead of stopping at the first.
func Validate(path string) *Report {
	r := &Report{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		r.fail("cannot read configuration file: %v", err)
		return r
	}

	doc, err := normalize(data, FormatFor(path))
	if err != nil {
		r.fail("%v", err)
		return r
	}
	r.info("syntax valid")

	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		r.fail("configuration must be an object: %v", err)
		return r
	}
	missing := false
	for _, section := range domain.RequiredSections {
		if _, ok := top[section]; ok {
			r.info("section '%s' present", section)
		} else {
			r.fail("missing required section: '%s'", section)
			missing = true
		}
	}
	if missing {
		return r
	}

	schemaErrs := schemaErrors(doc)
	for _, e := range schemaErrs {
		r.fail("schema %s", e)
	}
	if len(schemaErrs) > 0 {
		return r
	}

	var cfg domain.Configuration
	if err := json.Unmarshal(doc, &cfg); err != nil {
		r.fail("cannot decode configuration: %v", err)
		return r
	}
	r.Config = &cfg
	r.Version = cfg.Version

	for _, issue := range semanticIssues(&cfg) {
		r.fail("%s", issue.Message)
	}

	checkLevels(r, &cfg)
	checkRanges(r, &cfg)
	checkRuleInterventions(r, &cfg)

	return r
}

func checkLevels(r *Report, cfg *domain.Configuration) {
	r.info("found %d populations", cfg.Populations.Len())
	cfg.Populations.Each(func(key string, p domain.Population) {
		if !contains(ValidEvidenceLevels, p.EvidenceLevel) {
			r.warn("population '%s' has non-standard evidence_level: '%s'", key, p.EvidenceLevel)
		}
		if len(p.AttritionRange) == 2 && p.AttritionRange[0] > p.AttritionRange[1] {
			r.fail("population '%s' attrition_range min > max", key)
		}
	})

	r.info("found %d barriers", cfg.Barriers.Len())
	cfg.Barriers.Each(func(key string, b domain.Barrier) {
		if b.Impact > 0.5 {
			r.warn("barrier '%s' impact unusually high: %g (typical: 0.05-0.15)", key, b.Impact)
		}
		if !contains(ValidEvidenceLevels, b.EvidenceLevel) {
			r.warn("barrier '%s' has non-standard evidence_level: '%s'", key, b.EvidenceLevel)
		}
	})

	r.info("found %d interventions", cfg.Interventions.Len())
	cfg.Interventions.Each(func(key string, i domain.Intervention) {
		if i.Improvement > 0.5 {
			r.warn("intervention '%s' improvement unusually high: %g (typical: 0.05-0.20)", key, i.Improvement)
		}
		if !contains(ValidEvidenceLevels, i.EvidenceLevel) {
			r.warn("intervention '%s' has non-standard evidence_level: '%s'", key, i.EvidenceLevel)
		}
		if !contains(ValidCostLevels, i.CostLevel) {
			r.warn("intervention '%s' has non-standard cost_level: '%s'", key, i.CostLevel)
		}
		if !contains(ValidComplexityLevels, i.ImplementationComplexity) {
			r.warn("intervention '%s' has non-standard complexity: '%s'", key, i.ImplementationComplexity)
		}
	})

	r.info("found %d healthcare settings", cfg.HealthcareSettings.Len())
	r.info("found %d risk categories", cfg.RiskCategories.Len())
}

func checkRanges(r *Report, cfg *domain.Configuration) {
	params := cfg.AlgorithmParameters
	if params.MaxAttritionCeiling != 0.95 {
		r.warn("max_attrition_ceiling is %g, standard is 0.95", params.MaxAttritionCeiling)
	}
	if f := params.InterventionDiminishingReturnsFactor; f < 0.5 || f > 1.0 {
		r.warn("intervention_diminishing_returns_factor is %g, typical range: 0.5-1.0", f)
	}
	if params.BestCaseSuccessFloor == nil {
		r.info("best_case_success_floor not set, using %.2f", domain.DefaultBestCaseSuccessFloor)
	}

	ranges := map[string]domain.DayRange{
		"bridge_duration_oral_prep_recent_test":    params.BridgeDurationOralPrepRecentTest,
		"bridge_duration_oral_prep_no_recent_test": params.BridgeDurationOralPrepNoRecentTest,
		"bridge_duration_naive_recent_test":        params.BridgeDurationNaiveRecentTest,
		"bridge_duration_naive_no_recent_test":     params.BridgeDurationNaiveNoRecentTest,
	}
	names := make([]string, 0, len(ranges))
	for name := range ranges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dr := ranges[name]
		if dr.Min() > dr.Max() {
			r.fail("%s min > max", name)
		}
	}
	if params.MaximumBridgeDurationDays < params.BridgeDurationNaiveNoRecentTest.Min() {
		r.warn("maximum_bridge_duration_days %d is below the naive minimum of %d days",
			params.MaximumBridgeDurationDays, params.BridgeDurationNaiveNoRecentTest.Min())
	}

	if cfg.Populations.Len() > 0 {
		total := 0.0
		cfg.Populations.Each(func(_ string, p domain.Population) {
			total += p.BaselineAttrition
		})
		avg := total / float64(cfg.Populations.Len())
		if avg < 0.3 || avg > 0.7 {
			r.warn("average population attrition is %.2f, expected range: 0.30-0.70", avg)
		}
	}

	bands := sortedBands(cfg)
	if len(bands) > 0 {
		if first := bands[0]; math.Abs(first.min) > thresholdTolerance {
			r.warn("risk categories start at %.4g; lower rates fall back to %s", first.min, domain.FallbackRiskCategory)
		}
		if last := bands[len(bands)-1]; math.Abs(last.max-1.0) > thresholdTolerance {
			r.warn("risk categories end at %.4g; higher rates fall back to %s", last.max, domain.FallbackRiskCategory)
		}
	}
}

func checkRuleInterventions(r *Report, cfg *domain.Configuration) {
	for _, key := range domain.RuleInterventions {
		if !cfg.Interventions.Has(key) {
			r.warn("intervention '%s' used by recommendation rules is not configured", key)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
