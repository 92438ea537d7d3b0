package strategy

import (
	"math"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// VelocityResult describes rank movement over a window.
// BaseVelocity is negative when the asset is climbing.
type VelocityResult struct {
	BaseVelocity  float64
	Improvement   float64 // ranks gained per day, -BaseVelocity
	EffectiveDays float64
	StartRank     int
	EndRank       int
	Shrunk        bool // history is shorter than the window
	Insufficient  bool
}

// CalculateVelocity computes (rank_now - rank_baseline) / days over [asOf-windowDays, asOf].
// When the earliest snapshot is newer than the window start, the window shrinks to
// the elapsed time since that snapshot. An effective window shorter than minSpanDays
// is insufficient and reports zero velocity.
func CalculateVelocity(snaps []model.RankSnapshot, asOf time.Time, windowDays int, minSpanDays float64) VelocityResult {
	from := asOf.Add(-time.Duration(windowDays) * calculator.Day)
	window := calculator.Window(snaps, from, asOf)
	if len(window) < 2 || windowDays <= 0 {
		res := VelocityResult{Insufficient: true}
		if len(window) > 0 {
			res.StartRank = window[0].Rank
			res.EndRank = window[len(window)-1].Rank
		}
		return res
	}

	baseline, latest := window[0], window[len(window)-1]
	days := float64(windowDays)
	shrunk := false
	if snaps[0].Timestamp.After(from) {
		days = calculator.DaysBetween(baseline.Timestamp, asOf)
		shrunk = true
	}

	res := VelocityResult{
		EffectiveDays: days,
		StartRank:     baseline.Rank,
		EndRank:       latest.Rank,
		Shrunk:        shrunk,
	}
	if span := calculator.Finite(days, 0); span < calculator.Epsilon || span < minSpanDays {
		res.Insufficient = true
		return res
	}

	v := calculator.SafeDivide(float64(latest.Rank-baseline.Rank), days, 0)
	res.BaseVelocity = v
	res.Improvement = 0 - v // never -0
	return res
}

// TrackingDays returns whole days elapsed since the first snapshot.
func TrackingDays(snaps []model.RankSnapshot, asOf time.Time) int {
	if len(snaps) == 0 {
		return 0
	}
	d := calculator.DaysBetween(snaps[0].Timestamp, asOf)
	if d < 0 {
		return 0
	}
	return int(math.Floor(d))
}

// InterpretVelocity buckets ranks gained per day into a display label.
func InterpretVelocity(improvement float64) string {
	switch {
	case improvement > 5:
		return "extremely_fast"
	case improvement > 2:
		return "fast"
	case improvement > 0.5:
		return "moderate"
	case improvement > 0:
		return "slow"
	default:
		return "declining"
	}
}
