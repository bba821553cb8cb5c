package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ShippedConfig(t *testing.T) {
	report := Validate(shippedConfig)

	assert.True(t, report.Valid(), "errors: %v", report.Errors)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Warnings, "shipped config should use standard vocabulary")
	assert.Equal(t, "2.1.0", report.Version)
	require.NotNil(t, report.Config)
	assert.Contains(t, report.Info, "found 13 interventions")
}

func TestValidate_Warnings(t *testing.T) {
	path := mutatedConfig(t, func(doc map[string]any) {
		section(doc, "interventions")["BUNDLED_PAYMENT"].(map[string]any)["cost_level"] = "very high"
		section(doc, "barriers")["LEGAL_CONCERNS"].(map[string]any)["impact"] = 0.6
		section(doc, "algorithm_parameters")["max_attrition_ceiling"] = 0.9
		section(doc, "algorithm_parameters")["intervention_diminishing_returns_factor"] = 0.3
		delete(section(doc, "interventions"), "ORAL_TO_INJECTABLE")
	})

	report := Validate(path)

	assert.True(t, report.Valid(), "warnings never fail validation: %v", report.Errors)
	joined := strings.Join(report.Warnings, "\n")
	assert.Contains(t, joined, "intervention 'BUNDLED_PAYMENT' has non-standard cost_level")
	assert.Contains(t, joined, "barrier 'LEGAL_CONCERNS' impact unusually high")
	assert.Contains(t, joined, "max_attrition_ceiling is 0.9")
	assert.Contains(t, joined, "intervention_diminishing_returns_factor is 0.3")
	assert.Contains(t, joined, "'ORAL_TO_INJECTABLE' used by recommendation rules is not configured")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	path := mutatedConfig(t, func(doc map[string]any) {
		section(doc, "interventions")["MOBILE_DELIVERY"].(map[string]any)["applicable_populations"] = []any{"MARTIANS"}
		section(doc, "barriers")["CHILDCARE"].(map[string]any)["affected_populations"] = []any{"VENUSIANS"}
		section(doc, "risk_categories")["HIGH"].(map[string]any)["threshold_min"] = 0.60
		section(doc, "populations")["MSM"].(map[string]any)["attrition_range"] = []any{0.6, 0.4}
	})

	report := Validate(path)

	assert.False(t, report.Valid())
	joined := strings.Join(report.Errors, "\n")
	assert.Contains(t, joined, "references unknown population: MARTIANS")
	assert.Contains(t, joined, "references unknown population: VENUSIANS")
	assert.Contains(t, joined, "gap")
	assert.Contains(t, joined, "population 'MSM' attrition_range min > max")
}

func TestValidate_MissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "x", "populations": {}}`), 0644))

	report := Validate(path)

	assert.False(t, report.Valid())
	assert.Contains(t, report.Errors, "missing required section: 'barriers'")
	assert.Contains(t, report.Errors, "missing required section: 'algorithm_parameters'")
	assert.Nil(t, report.Config)
}

func TestValidate_Unreadable(t *testing.T) {
	report := Validate(filepath.Join(t.TempDir(), "nope.json"))
	assert.False(t, report.Valid())
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "cannot read configuration file")
}
