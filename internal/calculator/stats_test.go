package calculator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"RankRadar/internal/model"
)

func TestMeanAndStdDev(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)

	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, StdDev([]float64{42}))
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{7, 7, 7}))
}

func TestPearsonCorrelation(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ys   []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 1},
		{"perfect negative", []float64{1, 2, 3, 4}, []float64{8, 6, 4, 2}, -1},
		{"single pair", []float64{1}, []float64{1}, 0},
		{"zero variance", []float64{3, 3, 3}, []float64{1, 2, 3}, 0},
		{"uneven lengths use common prefix", []float64{1, 2, 3, 100}, []float64{1, 2, 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PearsonCorrelation(tt.xs, tt.ys), 1e-9)
		})
	}
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 2.0, SafeDivide(4, 2, -1))
	assert.Equal(t, -1.0, SafeDivide(4, 0, -1))
	assert.Equal(t, -1.0, SafeDivide(4, 1e-12, -1))
	assert.Equal(t, -1.0, SafeDivide(math.Inf(1), 1, -1))
	assert.Equal(t, -1.0, SafeDivide(1, math.NaN(), -1))
}

func TestClampAndFinite(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-3, 0, 10))
	assert.Equal(t, 10.0, Clamp(11, 0, 10))
	assert.Equal(t, 5.0, Clamp(5, 0, 10))
	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 10))

	assert.Equal(t, 1.0, Finite(math.NaN(), 1))
	assert.Equal(t, 1.0, Finite(math.Inf(-1), 1))
	assert.Equal(t, 3.0, Finite(3, 1))
}

func TestDailyKeepsLastSnapshotPerDay(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	snaps := []model.RankSnapshot{
		{Timestamp: base.Add(1 * time.Hour), Rank: 300},
		{Timestamp: base.Add(13 * time.Hour), Rank: 290},
		{Timestamp: base.Add(25 * time.Hour), Rank: 280},
		{Timestamp: base.Add(47 * time.Hour), Rank: 250},
	}
	points := Daily(snaps)
	if assert.Len(t, points, 2) {
		assert.Equal(t, 290, points[0].Rank)
		assert.Equal(t, base, points[0].Day)
		assert.Equal(t, 250, points[1].Rank)
		assert.Equal(t, base.Add(Day), points[1].Day)
	}
}

func TestWindowIsInclusive(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	var snaps []model.RankSnapshot
	for i := 0; i < 5; i++ {
		snaps = append(snaps, model.RankSnapshot{Timestamp: base.Add(time.Duration(i) * Day), Rank: 100 - i})
	}
	got := Window(snaps, base.Add(Day), base.Add(3*Day))
	if assert.Len(t, got, 3) {
		assert.Equal(t, 99, got[0].Rank)
		assert.Equal(t, 97, got[2].Rank)
	}
	assert.Empty(t, Window(snaps, base.Add(10*Day), base.Add(11*Day)))
	assert.InDelta(t, 1.5, DaysBetween(base, base.Add(36*time.Hour)), 1e-12)
}
