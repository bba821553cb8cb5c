package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// SummaryFileName is the name of the summary CSV written into the output directory.
const SummaryFileName = "batch_summary.csv"

var summaryHeader = []string{
	"patient_id",
	"population",
	"age",
	"prep_status",
	"barrier_count",
	"risk_level",
	"baseline_success",
	"adjusted_success",
	"estimated_success",
	"improvement",
	"top_intervention",
}

// SummaryRow is one line of the batch summary.
type SummaryRow struct {
	PatientID        string  `json:"patient_id"`
	Population       string  `json:"population"`
	Age              int     `json:"age"`
	PrEPStatus       string  `json:"prep_status"`
	BarrierCount     int     `json:"barrier_count"`
	RiskLevel        string  `json:"risk_level"`
	BaselineSuccess  float64 `json:"baseline_success"`
	AdjustedSuccess  float64 `json:"adjusted_success"`
	EstimatedSuccess float64 `json:"estimated_success"`
	Improvement      float64 `json:"improvement"`
	TopIntervention  string  `json:"top_intervention"`
}

func (s SummaryRow) record() []string {
	return []string{
		s.PatientID,
		s.Population,
		strconv.Itoa(s.Age),
		s.PrEPStatus,
		strconv.Itoa(s.BarrierCount),
		s.RiskLevel,
		formatFloat(s.BaselineSuccess),
		formatFloat(s.AdjustedSuccess),
		formatFloat(s.EstimatedSuccess),
		formatFloat(s.Improvement),
		s.TopIntervention,
	}
}

// Summarize builds summary rows for the successful results of run.
func Summarize(run *Run) []SummaryRow {
	ok := run.Succeeded()
	rows := make([]SummaryRow, 0, len(ok))
	for _, res := range ok {
		a := res.Assessment
		top := "None"
		if rec, found := a.TopRecommendation(); found {
			top = rec.InterventionName
		}
		rows = append(rows, SummaryRow{
			PatientID:        res.PatientID,
			Population:       res.Profile.Population,
			Age:              res.Profile.Age,
			PrEPStatus:       res.Profile.PrEPStatus.String(),
			BarrierCount:     res.Profile.BarrierCount(),
			RiskLevel:        a.RiskLabel,
			BaselineSuccess:  a.BaselineSuccessRate,
			AdjustedSuccess:  a.AdjustedSuccessRate,
			EstimatedSuccess: a.SuccessWithInterventions,
			Improvement:      a.Improvement(),
			TopIntervention:  top,
		})
	}
	return rows
}

// WriteSummary writes rows as CSV with a header line.
func WriteSummary(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryCSV writes batch_summary.csv into dir and returns its path.
func WriteSummaryCSV(dir string, rows []SummaryRow) (string, error) {
	path := filepath.Join(dir, SummaryFileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("batch: create summary: %w", err)
	}
	if err := WriteSummary(f, rows); err != nil {
		f.Close() //nolint:errcheck
		return "", fmt.Errorf("batch: write summary: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("batch: close summary: %w", err)
	}
	return path, nil
}

// RiskCount is the number of patients at one risk level.
type RiskCount struct {
	Level string  `json:"level"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// Stats aggregates a batch summary.
type Stats struct {
	Total            int         `json:"total"`
	AvgBaseline      float64     `json:"avg_baseline_success"`
	AvgAdjusted      float64     `json:"avg_adjusted_success"`
	AvgEstimated     float64     `json:"avg_estimated_success"`
	AvgImprovement   float64     `json:"avg_improvement"`
	RiskDistribution []RiskCount `json:"risk_distribution"`
}

// ComputeStats averages the summary rows and counts risk levels, most common
// first. Ties keep the order in which the level first appeared.
func ComputeStats(rows []SummaryRow) Stats {
	stats := Stats{Total: len(rows)}
	if len(rows) == 0 {
		return stats
	}

	counts := make(map[string]int)
	var order []string
	for _, row := range rows {
		stats.AvgBaseline += row.BaselineSuccess
		stats.AvgAdjusted += row.AdjustedSuccess
		stats.AvgEstimated += row.EstimatedSuccess
		stats.AvgImprovement += row.Improvement
		if _, seen := counts[row.RiskLevel]; !seen {
			order = append(order, row.RiskLevel)
		}
		counts[row.RiskLevel]++
	}

	n := float64(len(rows))
	stats.AvgBaseline /= n
	stats.AvgAdjusted /= n
	stats.AvgEstimated /= n
	stats.AvgImprovement /= n

	for _, level := range order {
		stats.RiskDistribution = append(stats.RiskDistribution, RiskCount{
			Level: level,
			Count: counts[level],
			Share: float64(counts[level]) / n,
		})
	}
	sort.SliceStable(stats.RiskDistribution, func(i, j int) bool {
		return stats.RiskDistribution[i].Count > stats.RiskDistribution[j].Count
	})

	return stats
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
