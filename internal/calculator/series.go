package calculator

import (
	"sort"
	"time"

	"RankRadar/internal/model"
)

// Day is the length of one scoring day.
const Day = 24 * time.Hour

// DailyPoint is the last observation of a UTC calendar day.
type DailyPoint struct {
	Day       time.Time // UTC midnight
	Timestamp time.Time
	Rank      int
	Price     float64
	Volume    float64
}

// Daily resamples ascending snapshots to one point per UTC day, keeping the last
// snapshot of each day.
func Daily(snaps []model.RankSnapshot) []DailyPoint {
	points := make([]DailyPoint, 0, len(snaps))
	for _, s := range snaps {
		day := s.Timestamp.UTC().Truncate(Day)
		p := DailyPoint{Day: day, Timestamp: s.Timestamp, Rank: s.Rank, Price: s.Price, Volume: s.Volume24h}
		if n := len(points); n > 0 && points[n-1].Day.Equal(day) {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}
	return points
}

// Window returns the snapshots with from <= Timestamp <= to. The input must be ascending.
func Window(snaps []model.RankSnapshot, from, to time.Time) []model.RankSnapshot {
	lo := sort.Search(len(snaps), func(i int) bool { return !snaps[i].Timestamp.Before(from) })
	hi := sort.Search(len(snaps), func(i int) bool { return snaps[i].Timestamp.After(to) })
	if lo >= hi {
		return nil
	}
	return snaps[lo:hi]
}

// DaysBetween returns the fractional number of days from a to b.
func DaysBetween(a, b time.Time) float64 {
	return b.Sub(a).Hours() / 24
}

// Volumes extracts the 24h volume of each daily point.
func Volumes(points []DailyPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Volume
	}
	return out
}
