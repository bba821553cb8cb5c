package service

import (
	"time"

	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/report"
)

// AssessPatientJSON parses a flat patient record, assesses it against cfg and
// returns the export document stamped with now.
func AssessPatientJSON(raw map[string]any, cfg *domain.Configuration, useLogit bool, now time.Time) (*report.Document, error) {
	profile, err := domain.ParsePatient(raw)
	if err != nil {
		return nil, err
	}

	engine, err := NewEngine(cfg, nil, WithLogit(useLogit))
	if err != nil {
		return nil, err
	}

	assessment, err := engine.Assess(profile)
	if err != nil {
		return nil, err
	}

	return engine.Export(profile, assessment, now), nil
}

// Export wraps report.Export with this engine's configuration version
func (e *Engine) Export(profile domain.PatientProfile, a *domain.Assessment, now time.Time) *report.Document {
	return report.Export(profile, a, report.Meta{
		ToolVersion:   report.ToolVersion,
		Timestamp:     now,
		ConfigVersion: e.cfg.Version,
	})
}
