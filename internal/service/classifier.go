package service

import (
	"github.com/lai-prep-bridge/internal/domain"
)

// RiskClassifier maps an attrition rate onto the configured risk bands
type RiskClassifier struct {
	cfg *domain.Configuration
}

// NewRiskClassifier creates a classifier over the risk categories in cfg
func NewRiskClassifier(cfg *domain.Configuration) *RiskClassifier {
	return &RiskClassifier{cfg: cfg}
}

// Categorize returns the label and record of the first category, in
// configuration order, whose [threshold_min, threshold_max) band contains
// attrition. When nothing matches, the VERY_HIGH category is returned.
func (c *RiskClassifier) Categorize(attrition float64) (string, domain.RiskCategory, error) {
	for _, key := range c.cfg.RiskCategories.Keys() {
		category, _ := c.cfg.RiskCategories.Get(key)
		if category.Contains(attrition) {
			return category.Label, category, nil
		}
	}

	fallback, err := c.cfg.RiskCategory(domain.FallbackRiskCategory)
	if err != nil {
		return "", domain.RiskCategory{}, err
	}
	return fallback.Label, fallback, nil
}
