package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/lai-prep-bridge/internal/domain"
)

const (
	// MaxRecommendations caps the selected list
	MaxRecommendations = 5
	overlapPenalty     = 0.9
)

// Select orders candidates by priority then descending improvement, keeping
// generation order for ties, and walks them greedily. Each candidate sharing
// mechanisms with those already chosen has its improvement reduced by 10%
// per shared mechanism. Order is fixed before penalties apply and is never
// revisited.
//
// Select returns new records; candidates is not modified.
func Select(candidates []domain.Recommendation) []domain.Recommendation {
	sorted := make([]domain.Recommendation, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Priority.Rank(), sorted[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return sorted[i].ExpectedImprovement > sorted[j].ExpectedImprovement
	})

	selected := make([]domain.Recommendation, 0, MaxRecommendations)
	used := make(map[string]struct{})

	for _, candidate := range sorted {
		if len(selected) >= MaxRecommendations {
			break
		}

		overlap := 0
		for _, m := range candidate.Mechanisms {
			if _, ok := used[m]; ok {
				overlap++
			}
		}

		rec := candidate
		rec.Mechanisms = append([]string(nil), candidate.Mechanisms...)
		if overlap > 0 {
			rec = penalize(rec, overlap)
		}

		selected = append(selected, rec)
		for _, m := range rec.Mechanisms {
			used[m] = struct{}{}
		}
	}

	return selected
}

func penalize(rec domain.Recommendation, overlap int) domain.Recommendation {
	original := rec.ExpectedImprovement
	rec.ExpectedImprovement = original * math.Pow(overlapPenalty, float64(overlap))

	note := fmt.Sprintf("(Note: %d mechanism overlap, adjusted from %.1f%%)", overlap, original)
	if rec.Rationale == "" {
		rec.Rationale = note
	} else {
		rec.Rationale += " " + note
	}
	return rec
}
