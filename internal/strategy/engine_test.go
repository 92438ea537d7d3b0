package strategy

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

func history(snaps []model.RankSnapshot) *model.AssetHistory {
	return &model.AssetHistory{
		Asset:     model.Asset{ID: "test-coin", Symbol: "TST", Name: "Test"},
		Snapshots: snaps,
	}
}

func TestEvaluate_RocketClimb(t *testing.T) {
	snaps := dailySnaps(500, 450, 400, 350, 300)
	asOf := snaps[len(snaps)-1].Timestamp
	eval := NewEngine(DefaultParams()).Evaluate(history(snaps), 7, asOf, 1.0)
	s := eval.Snapshot

	if s.BaseVelocity != -50 {
		t.Fatalf("base velocity = %v, want -50", s.BaseVelocity)
	}
	if s.ConsistencyScore != 10 {
		t.Errorf("consistency = %v, want 10", s.ConsistencyScore)
	}
	if s.TrackingPhase != model.PhaseEarly || s.DaysTracking != 4 {
		t.Errorf("tracking = %s/%d, want early/4", s.TrackingPhase, s.DaysTracking)
	}
	if s.Phase != model.PhaseMarkup {
		t.Errorf("phase = %s, want markup", s.Phase)
	}
	// 200 ranks within a week trips the extreme pump flag
	if s.RedFlagsPenalty != 30 {
		t.Errorf("penalty = %v, want 30", s.RedFlagsPenalty)
	}
	// VC=1, ED unavailable, LI degenerate -> 5.5; early quality (10+5.5)/20
	want := 50 * (15.5 / 20) * 0.7
	if math.Abs(s.RRScore-want) > 1e-9 {
		t.Errorf("rr_score = %v, want %v", s.RRScore, want)
	}
	if s.StartRank != 500 || s.EndRank != 300 {
		t.Errorf("ranks = %d->%d, want 500->300", s.StartRank, s.EndRank)
	}
}

func TestEvaluate_DecliningAssetScoresZero(t *testing.T) {
	snaps := dailySnaps(100, 120, 140, 160, 180, 200)
	eval := NewEngine(DefaultParams()).Evaluate(history(snaps), 7, snaps[5].Timestamp, 1.5)
	if eval.Snapshot.RRScore != 0 {
		t.Errorf("rr_score = %v, want 0", eval.Snapshot.RRScore)
	}
	if eval.Snapshot.Phase != model.PhaseDecline {
		t.Errorf("phase = %s, want decline", eval.Snapshot.Phase)
	}
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	snaps := dailySnaps(250)
	eval := NewEngine(DefaultParams()).Evaluate(history(snaps), 7, snaps[0].Timestamp, 1.0)
	s := eval.Snapshot
	if !s.InsufficientData {
		t.Error("expected insufficient data")
	}
	if s.RRScore != 0 {
		t.Errorf("rr_score = %v, want 0", s.RRScore)
	}
	if s.ConsistencyScore != ConsistencyFallback || s.PersistenceScore != 10 {
		t.Errorf("fallbacks = %v/%v", s.ConsistencyScore, s.PersistenceScore)
	}
}

func TestEvaluate_ClampsMultiplier(t *testing.T) {
	snaps := dailySnaps(300, 290, 280)
	e := NewEngine(DefaultParams())
	for _, tc := range []struct{ in, want float64 }{
		{3, 1.5}, {0.1, 0.5}, {math.NaN(), 1}, {1.2, 1.2},
	} {
		got := e.Evaluate(history(snaps), 7, snaps[2].Timestamp, tc.in).Snapshot.MarketContextMultiplier
		if got != tc.want {
			t.Errorf("multiplier(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	snaps := dailySnaps(800, 760, 700, 720, 650, 600, 610, 560)
	h := history(snaps)
	vols := make(map[string]float64, 12)
	for i, ex := range []string{
		"binance", "okx", "gate", "bybit", "kucoin", "mexc",
		"htx", "bitget", "kraken", "coinbase", "bitmart", "lbank",
	} {
		vols[ex] = 1e6/float64(i+3) + 0.123456789*float64(i)
	}
	h.Breakdowns = []model.ExchangeVolumeBreakdown{{
		AssetID:   "test-coin",
		Timestamp: snaps[6].Timestamp,
		Volumes:   vols,
	}}
	e := NewEngine(DefaultParams())
	asOf := snaps[len(snaps)-1].Timestamp

	first := e.Evaluate(h, 7, asOf, 1.0)
	for i := 0; i < 1000; i++ {
		next := e.Evaluate(h, 7, asOf, 1.0)
		if !reflect.DeepEqual(first, next) {
			t.Fatalf("evaluation %d differs:\n%+v\n%+v", i, first.Snapshot, next.Snapshot)
		}
	}
}

func TestEvaluate_ComponentBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	e := NewEngine(DefaultParams())

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(40)
		snaps := make([]model.RankSnapshot, n)
		rank := 50 + rng.Intn(900)
		ts := day0
		for j := range snaps {
			rank += rng.Intn(121) - 60
			if rank < 1 {
				rank = 1
			}
			ts = ts.Add(time.Duration(1+rng.Intn(36)) * time.Hour)
			snaps[j] = model.RankSnapshot{
				AssetID:   "rand",
				Timestamp: ts,
				Rank:      rank,
				Price:     rng.Float64() * 10,
				Volume24h: rng.Float64() * 1e6,
			}
		}
		mult := 0.5 + rng.Float64()
		for _, w := range []int{7, 14, 30} {
			s := e.Evaluate(history(snaps), w, ts, mult).Snapshot
			checkRange(t, "consistency", s.ConsistencyScore, 0, 10)
			checkRange(t, "volume", s.VolumeScore, 0, 10)
			checkRange(t, "persistence", s.PersistenceScore, 0, 10)
			checkRange(t, "penalty", s.RedFlagsPenalty, 0, 100)
			checkRange(t, "multiplier", s.MarketContextMultiplier, 0.5, 1.5)
			if s.RRScore < 0 || math.IsNaN(s.RRScore) || math.IsInf(s.RRScore, 0) {
				t.Fatalf("rr_score out of range: %v", s.RRScore)
			}
		}
	}
}

func checkRange(t *testing.T, name string, v, lo, hi float64) {
	t.Helper()
	if math.IsNaN(v) || v < lo || v > hi {
		t.Fatalf("%s = %v, want within [%v, %v]", name, v, lo, hi)
	}
}

func TestComposite_PhaseBoundary(t *testing.T) {
	e := NewEngine(DefaultParams())
	in := CompositeInput{BaseVelocity: -10, Consistency: 6, Volume: 4, Persistence: 0, Multiplier: 1}

	in.DaysTracking = 20
	if got := e.Composite(in); math.Abs(got-5.0) > 1e-9 {
		t.Errorf("day 20 (early) = %v, want 5", got)
	}
	if e.Threshold(e.TrackingPhase(20)) != 5.0 {
		t.Error("early threshold should be 5.0")
	}

	in.DaysTracking = 21
	if got := e.Composite(in); math.Abs(got-10.0/3.0) > 1e-9 {
		t.Errorf("day 21 (validated) = %v, want 3.333", got)
	}
	if e.Threshold(e.TrackingPhase(21)) != 6.0 {
		t.Error("validated threshold should be 6.0")
	}
}

func TestComposite_Guards(t *testing.T) {
	e := NewEngine(DefaultParams())
	base := CompositeInput{BaseVelocity: -4, Consistency: 8, Volume: 8, Persistence: 8, Multiplier: 1, DaysTracking: 30}

	tests := []struct {
		name   string
		modify func(*CompositeInput)
		want   float64
	}{
		{"falling asset", func(in *CompositeInput) { in.BaseVelocity = 5 }, 0},
		{"nan velocity", func(in *CompositeInput) { in.BaseVelocity = math.NaN() }, 0},
		{"penalty over 100", func(in *CompositeInput) { in.Penalty = 150 }, 0},
		{"nan multiplier is neutral", func(in *CompositeInput) { in.Multiplier = math.NaN() }, 4 * 24.0 / 30},
		{"inf consistency", func(in *CompositeInput) { in.Consistency = math.Inf(1) }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.modify(&in)
			if got := e.Composite(in); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Composite() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComposite_Monotonic(t *testing.T) {
	e := NewEngine(DefaultParams())
	in := CompositeInput{BaseVelocity: -6, Consistency: 5, Volume: 5, Persistence: 5, Multiplier: 1, DaysTracking: 25}

	prev := math.Inf(1)
	for pen := 0.0; pen <= 100; pen += 10 {
		in.Penalty = pen
		got := e.Composite(in)
		if got > prev {
			t.Fatalf("penalty %v raised score to %v", pen, got)
		}
		prev = got
	}

	in.Penalty = 0
	prev = -1
	for v := 0.0; v <= 20; v += 2 {
		in.BaseVelocity = -v
		got := e.Composite(in)
		if got < prev {
			t.Fatalf("faster climb %v lowered score to %v", v, got)
		}
		prev = got
	}
}

func TestClassifyPhase(t *testing.T) {
	tests := []struct {
		velocity, consistency float64
		want                  model.MarketPhase
	}{
		{-5, 8, model.PhaseMarkup},
		{-5, 2, model.PhaseAccumulation},
		{3, 7, model.PhaseDecline},
		{3, 1, model.PhaseDistribution},
		{0, 5, model.PhaseDecline},
	}
	for _, tt := range tests {
		if got := ClassifyPhase(tt.velocity, tt.consistency); got != tt.want {
			t.Errorf("ClassifyPhase(%v, %v) = %s, want %s", tt.velocity, tt.consistency, got, tt.want)
		}
	}
}

func TestTrackingPhaseUsesDailyPoints(t *testing.T) {
	// several snapshots per day resample to one daily point
	snaps := dailySnaps(400, 380, 360)
	extra := snaps[1]
	extra.Timestamp = extra.Timestamp.Add(-6 * time.Hour)
	extra.Rank = 999
	withIntraday := append([]model.RankSnapshot{snaps[0], extra}, snaps[1:]...)

	a := NewEngine(DefaultParams()).Evaluate(history(snaps), 7, snaps[2].Timestamp, 1).Snapshot
	b := NewEngine(DefaultParams()).Evaluate(history(withIntraday), 7, snaps[2].Timestamp, 1).Snapshot
	if a.ConsistencyScore != b.ConsistencyScore {
		t.Errorf("intraday snapshot changed consistency: %v vs %v", a.ConsistencyScore, b.ConsistencyScore)
	}
	if len(calculator.Daily(withIntraday)) != 3 {
		t.Error("expected three daily points")
	}
}
