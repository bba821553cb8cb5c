package batch

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	runner, err := NewRunner(newTestEngine(t), dir)
	require.NoError(t, err)

	run, err := runner.Run(context.Background(), sampleRows())
	require.NoError(t, err)

	rows := Summarize(run)
	require.Len(t, rows, 2)

	pwid := rows[0]
	assert.Equal(t, "patient_0001", pwid.PatientID)
	assert.Equal(t, "PWID", pwid.Population)
	assert.Equal(t, 35, pwid.Age)
	assert.Equal(t, "naive", pwid.PrEPStatus)
	assert.Equal(t, 2, pwid.BarrierCount)
	assert.Equal(t, run.Results[0].Assessment.RiskLabel, pwid.RiskLevel)
	assert.InDelta(t, pwid.EstimatedSuccess-pwid.AdjustedSuccess, pwid.Improvement, 1e-12)
	assert.Equal(t, run.Results[0].Assessment.Recommendations[0].InterventionName, pwid.TopIntervention)

	msm := rows[1]
	assert.Equal(t, "msm-1", msm.PatientID)
	assert.Equal(t, 0, msm.BarrierCount)
	assert.Equal(t, "Same-Day Switching Protocol", msm.TopIntervention)

	path, err := WriteSummaryCSV(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SummaryFileName), path)

	back, err := LoadRows(path)
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.Equal(t, "msm-1", back[1]["patient_id"])
	assert.Equal(t, "Same-Day Switching Protocol", back[1]["top_intervention"])
	assert.Equal(t, "2", back[0]["barrier_count"])
}

func TestWriteSummary_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, nil))
	assert.Equal(t,
		"patient_id,population,age,prep_status,barrier_count,risk_level,baseline_success,adjusted_success,estimated_success,improvement,top_intervention\n",
		buf.String())
}

func TestWriteSummary_Values(t *testing.T) {
	var buf bytes.Buffer
	rows := []SummaryRow{{
		PatientID:        "p1",
		Population:       "MSM",
		Age:              30,
		PrEPStatus:       "naive",
		BarrierCount:     1,
		RiskLevel:        "High attrition risk",
		BaselineSuccess:  0.55,
		AdjustedSuccess:  0.43,
		EstimatedSuccess: 0.5,
		Improvement:      0.07,
		TopIntervention:  "None",
	}}
	require.NoError(t, WriteSummary(&buf, rows))
	assert.Contains(t, buf.String(), "p1,MSM,30,naive,1,High attrition risk,0.55,0.43,0.5,0.07,None\n")
}

func TestComputeStats(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		stats := ComputeStats(nil)
		assert.Zero(t, stats.Total)
		assert.Empty(t, stats.RiskDistribution)
	})

	t.Run("Averages and distribution", func(t *testing.T) {
		rows := []SummaryRow{
			{RiskLevel: "Moderate attrition risk", BaselineSuccess: 0.5, AdjustedSuccess: 0.4, EstimatedSuccess: 0.6, Improvement: 0.2},
			{RiskLevel: "High attrition risk", BaselineSuccess: 0.3, AdjustedSuccess: 0.2, EstimatedSuccess: 0.4, Improvement: 0.2},
			{RiskLevel: "High attrition risk", BaselineSuccess: 0.4, AdjustedSuccess: 0.3, EstimatedSuccess: 0.5, Improvement: 0.2},
			{RiskLevel: "Low attrition risk", BaselineSuccess: 0.6, AdjustedSuccess: 0.5, EstimatedSuccess: 0.7, Improvement: 0.2},
		}

		stats := ComputeStats(rows)
		assert.Equal(t, 4, stats.Total)
		assert.InDelta(t, 0.45, stats.AvgBaseline, 1e-9)
		assert.InDelta(t, 0.35, stats.AvgAdjusted, 1e-9)
		assert.InDelta(t, 0.55, stats.AvgEstimated, 1e-9)
		assert.InDelta(t, 0.2, stats.AvgImprovement, 1e-9)

		assert.Equal(t, []RiskCount{
			{Level: "High attrition risk", Count: 2, Share: 0.5},
			{Level: "Moderate attrition risk", Count: 1, Share: 0.25},
			{Level: "Low attrition risk", Count: 1, Share: 0.25},
		}, stats.RiskDistribution)
	})
}
