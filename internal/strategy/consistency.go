package strategy

import (
	"math"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// DailyChanges returns rank_{i-1} - rank_i for consecutive daily points.
// Positive values are days the asset climbed.
func DailyChanges(points []calculator.DailyPoint) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		out = append(out, float64(points[i-1].Rank-points[i].Rank))
	}
	return out
}

// ScoreConsistency scores how smooth the daily rank changes are, 0 to 10.
// Low dispersion around a meaningful mean is steady movement; high dispersion is erratic.
func ScoreConsistency(points []calculator.DailyPoint, p ConsistencyParams) model.Component {
	changes := DailyChanges(points)
	if len(changes) < p.MinChanges || len(changes) == 0 {
		return model.Unavailable("insufficient daily rank changes")
	}
	mu := calculator.Mean(changes)
	if math.Abs(mu) < p.MinMeanChange {
		return model.Computed(0)
	}
	sigma := calculator.StdDev(changes)
	ratio := calculator.SafeDivide(sigma, math.Abs(mu), math.Inf(1))
	score := 10 * math.Max(0, 1-ratio)
	return model.Computed(calculator.Clamp(calculator.Finite(score, 0), 0, 10))
}
