package service

import (
	"math"

	"github.com/lai-prep-bridge/internal/domain"
)

// Aggregator combines a population baseline with a patient's barriers into an
// adjusted bridge-period success rate.
type Aggregator interface {
	Method() domain.Method
	AdjustedSuccess(profile domain.PatientProfile, baselineAttrition float64) (float64, domain.AttritionFactors, error)
}

// LinearAggregator adds barrier impacts and the count penalty directly to the
// baseline attrition, capped at the configured ceiling.
type LinearAggregator struct {
	cfg *domain.Configuration
}

// NewLinearAggregator creates a linear aggregator over cfg
func NewLinearAggregator(cfg *domain.Configuration) *LinearAggregator {
	return &LinearAggregator{cfg: cfg}
}

// Method returns domain.MethodLinear
func (a *LinearAggregator) Method() domain.Method {
	return domain.MethodLinear
}

// AdjustedSuccess implements Aggregator
func (a *LinearAggregator) AdjustedSuccess(profile domain.PatientProfile, baselineAttrition float64) (float64, domain.AttritionFactors, error) {
	barriers := profile.DistinctBarriers()
	params := a.cfg.AlgorithmParameters

	contributions := make([]domain.BarrierContribution, 0, len(barriers))
	impacts := 0.0
	for _, key := range barriers {
		barrier, err := a.cfg.Barrier(key)
		if err != nil {
			return 0, domain.AttritionFactors{}, err
		}
		impacts += barrier.Impact
		contributions = append(contributions, domain.BarrierContribution{Barrier: key, Value: round4(barrier.Impact)})
	}

	penalty := params.BarrierCountAdjustmentFactor.For(len(barriers))
	adjustment := impacts + penalty
	adjusted := math.Min(params.MaxAttritionCeiling, baselineAttrition+adjustment)

	factors := domain.AttritionFactors{
		Method:              domain.MethodLinear,
		BaselineAttrition:   round4(baselineAttrition),
		Contributions:       contributions,
		BarrierCountPenalty: round4(penalty),
		TotalAdjustment:     round4(adjustment),
		AdjustedAttrition:   round4(adjusted),
	}
	return 1 - adjusted, factors, nil
}

// LogitAggregator works in log-odds space. Each barrier moves the running
// log-odds to logit(baseline + impact), so the shift recorded for a barrier
// is measured from wherever the previous barrier left it. The count penalty
// is applied once, relative to the original baseline.
type LogitAggregator struct {
	cfg *domain.Configuration
}

// NewLogitAggregator creates a logit-space aggregator over cfg
func NewLogitAggregator(cfg *domain.Configuration) *LogitAggregator {
	return &LogitAggregator{cfg: cfg}
}

// Method returns domain.MethodLogit
func (a *LogitAggregator) Method() domain.Method {
	return domain.MethodLogit
}

// AdjustedSuccess implements Aggregator
func (a *LogitAggregator) AdjustedSuccess(profile domain.PatientProfile, baselineAttrition float64) (float64, domain.AttritionFactors, error) {
	barriers := profile.DistinctBarriers()
	params := a.cfg.AlgorithmParameters

	baseLogit := logit(baselineAttrition)
	running := baseLogit

	contributions := make([]domain.BarrierContribution, 0, len(barriers))
	for _, key := range barriers {
		barrier, err := a.cfg.Barrier(key)
		if err != nil {
			return 0, domain.AttritionFactors{}, err
		}
		shift := logit(math.Min(0.99, baselineAttrition+barrier.Impact)) - running
		running += shift
		contributions = append(contributions, domain.BarrierContribution{Barrier: key, Value: round4(shift)})
	}

	penalty := params.BarrierCountAdjustmentFactor.For(len(barriers))
	if penalty > 0 {
		running += logit(math.Min(0.99, baselineAttrition+penalty)) - baseLogit
	}

	adjusted := clamp(invLogit(running), 0.05, 0.95)

	factors := domain.AttritionFactors{
		Method:              domain.MethodLogit,
		BaselineAttrition:   round4(baselineAttrition),
		BaselineLogit:       round4(baseLogit),
		Contributions:       contributions,
		BarrierCountPenalty: round4(penalty),
		AdjustedAttrition:   round4(adjusted),
		AdjustedLogit:       round4(running),
	}
	return 1 - adjusted, factors, nil
}

// logit bounds p to [0.01, 0.99] before transforming.
func logit(p float64) float64 {
	p = clamp(p, 0.01, 0.99)
	return math.Log(p / (1 - p))
}

func invLogit(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round4 rounds half away from zero to four decimal places.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
