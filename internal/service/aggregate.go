package service

import (
	"fmt"
	"math"

	"vendorse/internal/models"
)

// WeightedScore returns sum(score*weight) / sum(weight). A nil weight counts
// as 1. Empty input, negative or non-finite weights and a zero total weight
// are rejected.
func WeightedScore(pairs []models.ScoreWeight) (float64, error) {
	if len(pairs) == 0 {
		return 0, invalidInput("no scores to aggregate")
	}

	var sum, total float64
	for _, p := range pairs {
		w := 1.0
		if p.Weight != nil {
			w = *p.Weight
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, invalidInput("weight must be finite, got %v", w)
		}
		if w < 0 {
			return 0, invalidInput("negative weight %v", w)
		}
		sum += p.Score * w
		total += w
	}

	if total <= 0 {
		return 0, invalidInput("total weight must be positive")
	}
	if math.IsInf(total, 0) || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return 0, invalidInput("weighted sum is out of range")
	}
	return sum / total, nil
}

// scoreEvaluations aggregates evaluation rows, weighting each row by its
// criterion's entry in weights (1 when absent).
func scoreEvaluations(evals []models.EvaluationScore, weights map[string]float64) (float64, error) {
	pairs := make([]models.ScoreWeight, 0, len(evals))
	for _, e := range evals {
		pair := models.ScoreWeight{Score: e.Score}
		if w, ok := weights[e.Criteria]; ok {
			pair.Weight = &w
		}
		pairs = append(pairs, pair)
	}

	score, err := WeightedScore(pairs)
	if err != nil {
		return 0, fmt.Errorf("service.scoreEvaluations: %w", err)
	}
	return score, nil
}
