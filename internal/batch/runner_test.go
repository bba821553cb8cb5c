package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lai-prep-bridge/internal/config"
	"github.com/lai-prep-bridge/internal/domain"
	"github.com/lai-prep-bridge/internal/service"
)

const shippedConfig = "../../configs/lai_prep_config.json"

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *service.Engine {
	t.Helper()
	cfg, err := config.Load(shippedConfig)
	require.NoError(t, err)
	engine, err := service.NewEngine(cfg, nil)
	require.NoError(t, err)
	return engine
}

func sampleRows() []Row {
	return []Row{
		{
			"population":          "PWID",
			"age":                 "35",
			"current_prep_status": "naive",
			"barriers":            "HOUSING_INSTABILITY,TRANSPORTATION",
			"insurance_status":    "uninsured",
		},
		{
			"patient_id":          "msm-1",
			"population":          "MSM",
			"age":                 "28",
			"current_prep_status": "oral_prep",
			"barriers":            "",
			"recent_hiv_test":     "yes",
		},
		{
			"population":          "UNKNOWN_GROUP",
			"age":                 "40",
			"current_prep_status": "naive",
		},
		{
			"population":          "MSM",
			"age":                 "thirty",
			"current_prep_status": "naive",
		},
	}
}

func TestNewRunner(t *testing.T) {
	_, err := NewRunner(nil, t.TempDir())
	assert.Error(t, err)

	_, err = NewRunner(newTestEngine(t), "")
	assert.Error(t, err)

	r, err := NewRunner(newTestEngine(t), t.TempDir(), WithWorkers(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, r.workers)
}

func TestRunner_Run(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	logger, hook := test.NewNullLogger()

	runner, err := NewRunner(newTestEngine(t), dir,
		WithWorkers(2),
		WithLogger(logger),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	run, err := runner.Run(context.Background(), sampleRows())
	require.NoError(t, err)
	require.Len(t, run.Results, 4)
	assert.NotEmpty(t, run.ID)

	t.Run("Results keep input order", func(t *testing.T) {
		ids := make([]string, len(run.Results))
		for i, res := range run.Results {
			assert.Equal(t, i+1, res.Row)
			ids[i] = res.PatientID
		}
		assert.Equal(t, []string{"patient_0001", "msm-1", "patient_0003", "patient_0004"}, ids)
	})

	t.Run("Failures are recorded per row", func(t *testing.T) {
		assert.Len(t, run.Succeeded(), 2)
		failed := run.Failed()
		require.Len(t, failed, 2)
		assert.True(t, domain.IsConfigurationError(failed[0].Err))

		var verr *domain.ValidationError
		require.ErrorAs(t, failed[1].Err, &verr)
		assert.Equal(t, domain.FieldAge, verr.Field)
		assert.Empty(t, failed[1].OutputPath)
	})

	t.Run("Exports are written", func(t *testing.T) {
		res := run.Results[0]
		assert.Equal(t, filepath.Join(dir, "patient_0001_assessment.json"), res.OutputPath)

		data, err := os.ReadFile(res.OutputPath)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		metadata := doc["metadata"].(map[string]any)
		assert.Equal(t, "2025-06-01T12:00:00Z", metadata["timestamp"])
		assert.Equal(t, "2.1.0", metadata["config_version"])
		profile := doc["patient_profile"].(map[string]any)
		assert.Equal(t, "patient_0001", profile["patient_id"])

		assert.FileExists(t, filepath.Join(dir, "msm-1_assessment.json"))
		assert.NoFileExists(t, filepath.Join(dir, "patient_0003_assessment.json"))
	})

	t.Run("Row failures are logged as warnings", func(t *testing.T) {
		warnings := 0
		for _, entry := range hook.AllEntries() {
			if entry.Level == logrus.WarnLevel {
				warnings++
				assert.Equal(t, run.ID, entry.Data["run_id"])
			}
		}
		assert.Equal(t, 2, warnings)
		assert.Equal(t, "Batch assessment finished", hook.LastEntry().Message)
	})
}

func TestRunner_Cancelled(t *testing.T) {
	runner, err := NewRunner(newTestEngine(t), t.TempDir(), WithLogger(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = runner.Run(ctx, sampleRows())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	tests := map[string]string{
		"patient_0001": "patient_0001",
		"msm-1.a":      "msm-1.a",
		"../etc/x":     "__etc_x",
		"a b/c":        "a_b_c",
	}
	for in, want := range tests {
		assert.Equal(t, want, fileName(in), in)
	}
}

func TestRunner_DuplicatePatientIDs(t *testing.T) {
	dir := t.TempDir()
	logger, hook := test.NewNullLogger()

	runner, err := NewRunner(newTestEngine(t), dir,
		WithWorkers(4),
		WithLogger(logger),
		WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, err)

	rows := []Row{
		{"patient_id": "dup", "population": "MSM", "age": "28", "current_prep_status": "naive"},
		{"patient_id": "dup", "population": "PWID", "age": "40", "current_prep_status": "naive"},
		{"patient_id": "DUP", "population": "GENERAL", "age": "51", "current_prep_status": "naive"},
	}
	run, err := runner.Run(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, run.Succeeded(), 3)

	want := []string{"dup_assessment.json", "dup_row2_assessment.json", "DUP_row3_assessment.json"}
	for i, res := range run.Results {
		assert.Equal(t, filepath.Join(dir, want[i]), res.OutputPath)

		data, err := os.ReadFile(res.OutputPath)
		require.NoError(t, err)
		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))
		profile := doc["patient_profile"].(map[string]any)
		assert.Equal(t, rows[i]["population"], profile["population"])
	}

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
			assert.Equal(t, "Duplicate patient_id, writing row-suffixed export", entry.Message)
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "pwid-1_assessment.json", ExportFileName("pwid-1"))
	assert.Equal(t, "__etc_x_assessment.json", ExportFileName("../etc/x"))
}

func TestOutputNames(t *testing.T) {
	rows := []Row{
		{"patient_id": "a"},
		{"patient_id": "a_row3"},
		{"patient_id": "a"},
		{},
		{"patient_id": "a/b"},
		{"patient_id": "a_b"},
	}
	assert.Equal(t, []string{
		"a_assessment.json",
		"a_row3_assessment.json",
		"a_row3_1_assessment.json",
		"patient_0004_assessment.json",
		"a_b_assessment.json",
		"a_b_row6_assessment.json",
	}, outputNames(rows))
}
