package service

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/lai-prep-bridge/internal/domain"
)

const maxKeyBarriers = 5

// Engine produces bridge-period assessments from an immutable Configuration.
// Assess holds no state between calls and is safe for concurrent use.
type Engine struct {
	cfg         *domain.Configuration
	logger      *logrus.Logger
	aggregator  Aggregator
	classifier  *RiskClassifier
	recommender *Recommender
}

// Option is a functional option for Engine.
type Option func(*Engine) error

// WithLogit selects the logit-space aggregator instead of the linear one.
func WithLogit(useLogit bool) Option {
	return func(e *Engine) error {
		if useLogit {
			e.aggregator = NewLogitAggregator(e.cfg)
		} else {
			e.aggregator = NewLinearAggregator(e.cfg)
		}
		return nil
	}
}

// NewEngine creates an engine over cfg. A nil logger discards output.
func NewEngine(cfg *domain.Configuration, logger *logrus.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, domain.NewConfigurationError(domain.ErrConfigNotFound, "configuration is required", nil)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	engine := &Engine{
		cfg:         cfg,
		logger:      logger,
		aggregator:  NewLinearAggregator(cfg),
		classifier:  NewRiskClassifier(cfg),
		recommender: NewRecommender(cfg),
	}

	for _, opt := range opts {
		if err := opt(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// Config returns the configuration the engine was built with
func (e *Engine) Config() *domain.Configuration {
	return e.cfg
}

// Method returns the aggregation method in use
func (e *Engine) Method() domain.Method {
	return e.aggregator.Method()
}

// Assess runs the full assessment for profile. Unknown population, barrier or
// setting keys fail with a *domain.ConfigurationError before anything is
// computed.
func (e *Engine) Assess(profile domain.PatientProfile) (*domain.Assessment, error) {
	population, err := e.validate(profile)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"patient_id": profile.PatientID,
			"population": profile.Population,
		}).WithError(err).Debug("Rejected patient profile")
		return nil, err
	}

	adjusted, factors, err := e.aggregator.AdjustedSuccess(profile, population.BaselineAttrition)
	if err != nil {
		return nil, err
	}

	if profile.IsBestCase() {
		floor := e.cfg.AlgorithmParameters.BestCaseFloor()
		if adjusted < floor {
			adjusted = floor
			factors.BestCaseFloorApplied = true
		}
	}

	attrition := 1 - adjusted
	label, category, err := e.classifier.Categorize(attrition)
	if err != nil {
		return nil, err
	}

	candidates, err := e.recommender.Candidates(profile)
	if err != nil {
		return nil, err
	}
	recommendations := Select(candidates)

	keyBarriers := profile.Barriers
	if len(keyBarriers) > maxKeyBarriers {
		keyBarriers = keyBarriers[:maxKeyBarriers]
	}
	details := make([]domain.Barrier, 0, len(keyBarriers))
	for _, key := range keyBarriers {
		barrier, _ := e.cfg.Barriers.Get(key)
		details = append(details, barrier)
	}

	assessment := &domain.Assessment{
		BaselineSuccessRate:      population.BaselineSuccess(),
		AdjustedSuccessRate:      adjusted,
		RiskLabel:                label,
		RiskCategory:             category,
		KeyBarriers:              append([]string{}, keyBarriers...),
		BarrierDetails:           details,
		Recommendations:          recommendations,
		BridgeDuration:           BridgeDuration(e.cfg.AlgorithmParameters, profile),
		SuccessWithInterventions: e.combine(adjusted, recommendations),
		ClinicalNotes:            ClinicalNotes(e.cfg, profile, population, category, attrition),
		Population:               population,
		AttritionFactors:         factors,
		DelayFactors:             DelayFactors(profile),
	}

	fields := logrus.Fields{
		"patient_id":       profile.PatientID,
		"population":       profile.Population,
		"method":           e.aggregator.Method(),
		"risk_level":       label,
		"adjusted_success": round4(adjusted),
		"recommendations":  len(recommendations),
		"best_case_floor":  factors.BestCaseFloorApplied,
	}
	if top, ok := assessment.TopRecommendation(); ok {
		fields["top_intervention"] = top.Intervention
	}
	e.logger.WithFields(fields).Debug("Assessment completed")

	return assessment, nil
}

// validate resolves every key in profile against the configuration and
// returns the population record.
func (e *Engine) validate(profile domain.PatientProfile) (domain.Population, error) {
	population, err := e.cfg.Population(profile.Population)
	if err != nil {
		return domain.Population{}, err
	}
	for _, key := range profile.Barriers {
		if _, err := e.cfg.Barrier(key); err != nil {
			return domain.Population{}, err
		}
	}
	if _, err := e.cfg.Setting(profile.HealthcareSetting); err != nil {
		return domain.Population{}, err
	}
	if !profile.PrEPStatus.IsValid() {
		return domain.Population{}, domain.NewValidationError(domain.FieldPrEPStatus, "unsupported PrEP status", string(profile.PrEPStatus))
	}
	if !profile.InsuranceStatus.IsValid() {
		return domain.Population{}, domain.NewValidationError(domain.FieldInsuranceStatus, "unsupported insurance status", string(profile.InsuranceStatus))
	}
	return population, nil
}

// combine adds the top three selected improvements, scaled by the
// diminishing returns factor, and caps the result.
func (e *Engine) combine(adjusted float64, recommendations []domain.Recommendation) float64 {
	params := e.cfg.AlgorithmParameters

	sum := 0.0
	for i, rec := range recommendations {
		if i == 3 {
			break
		}
		sum += rec.ExpectedImprovement / 100
	}
	return math.Min(params.MaxSuccessRateWithInterventions, adjusted+sum*params.InterventionDiminishingReturnsFactor)
}
