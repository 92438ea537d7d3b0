package strategy

import (
	"math"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// PersistenceResult reports how well the asset has held its best rank in the window.
type PersistenceResult struct {
	Score         model.Component
	PeakRank      int
	PeakDate      time.Time
	DaysSincePeak float64
	DaysInBand    int
	Grace         bool
}

// ScorePersistence scores retention of the window peak, 0 to 10.
// Inside the grace period the score is exactly 10.
func ScorePersistence(points []calculator.DailyPoint, p PersistenceParams) PersistenceResult {
	if len(points) == 0 {
		return PersistenceResult{Score: model.Unavailable("no daily ranks in window")}
	}

	peakIdx := 0
	for i, pt := range points {
		if pt.Rank < points[peakIdx].Rank {
			peakIdx = i
		}
	}
	peak := points[peakIdx]
	last := points[len(points)-1]
	res := PersistenceResult{
		PeakRank:      peak.Rank,
		PeakDate:      peak.Day,
		DaysSincePeak: calculator.DaysBetween(peak.Day, last.Day),
	}

	if res.DaysSincePeak < p.GraceDays {
		res.Grace = true
		res.Score = model.Computed(10)
		return res
	}

	tol := p.BandTolerance * float64(peak.Rank)
	lo := math.Max(1, float64(peak.Rank)-tol)
	hi := float64(peak.Rank) + tol
	for _, pt := range points[peakIdx+1:] {
		r := float64(pt.Rank)
		if r >= lo && r <= hi {
			res.DaysInBand++
		}
	}

	ratio := math.Min(1, calculator.SafeDivide(float64(res.DaysInBand), res.DaysSincePeak, 0))
	res.Score = model.Computed(calculator.Clamp(10*ratio, 0, 10))
	return res
}
