package strategy

import (
	"math"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// Fallbacks applied when a component could not be computed.
const (
	ConsistencyFallback = 0.0
	PersistenceFallback = 10.0
)

// Engine combines the component scorers into the composite rr_score.
type Engine struct {
	Params Params
	trend  TrendAdjuster
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(p Params) *Engine {
	return &Engine{Params: p, trend: NewTrendAdjuster(p.Market)}
}

// Breakdown holds every intermediate result behind one ScoreSnapshot.
type Breakdown struct {
	Velocity    VelocityResult
	Consistency model.Component
	Volume      VolumeResult
	Persistence PersistenceResult
	RedFlags    RedFlagReport
}

// Evaluation is a ScoreSnapshot plus the breakdown that produced it.
type Evaluation struct {
	Snapshot  model.ScoreSnapshot
	Breakdown Breakdown
}

// CompositeInput is the resolved set of values the composite formula consumes.
type CompositeInput struct {
	BaseVelocity float64
	Consistency  float64
	Volume       float64
	Persistence  float64
	Penalty      float64
	Multiplier   float64
	DaysTracking int
}

// MarketMultiplier derives the batch-wide multiplier from the market context.
func (e *Engine) MarketMultiplier(mc *model.MarketContext) float64 {
	return MarketMultiplier(mc, e.Params.Market, e.trend)
}

// TrackingPhase is early until ValidatedAfterDays of history exist.
func (e *Engine) TrackingPhase(daysTracking int) model.TrackingPhase {
	if daysTracking < e.Params.Phase.ValidatedAfterDays {
		return model.PhaseEarly
	}
	return model.PhaseValidated
}

// Threshold returns the watch-list detection threshold for a phase.
func (e *Engine) Threshold(phase model.TrackingPhase) float64 {
	if phase == model.PhaseValidated {
		return e.Params.Phase.ValidatedThreshold
	}
	return e.Params.Phase.EarlyThreshold
}

// Composite computes rr_score. Only climbing counts as goodness; every term that
// is not finite collapses to 0 and the result is never negative.
func (e *Engine) Composite(in CompositeInput) float64 {
	goodness := calculator.Finite(math.Max(0, -in.BaseVelocity), 0)

	var quality float64
	if e.TrackingPhase(in.DaysTracking) == model.PhaseEarly {
		quality = (in.Consistency + in.Volume) / 20
	} else {
		quality = (in.Consistency + in.Volume + in.Persistence) / 30
	}
	quality = calculator.Finite(quality, 0)

	penaltyFactor := calculator.Clamp(calculator.Finite(1-in.Penalty/100, 0), 0, 1)
	mult := calculator.Clamp(calculator.Finite(in.Multiplier, 1), MinMarketMultiplier, MaxMarketMultiplier)

	rr := calculator.Finite(goodness*quality*penaltyFactor*mult, 0)
	return math.Max(0, rr)
}

// Evaluate scores one asset over one window ending at asOf.
func (e *Engine) Evaluate(h *model.AssetHistory, windowDays int, asOf time.Time, multiplier float64) *Evaluation {
	from := asOf.Add(-time.Duration(windowDays) * calculator.Day)
	daily := calculator.Daily(calculator.Window(h.Snapshots, from, asOf))
	multiplier = calculator.Clamp(calculator.Finite(multiplier, 1), MinMarketMultiplier, MaxMarketMultiplier)

	// Step a: independent component scorers
	var b Breakdown
	b.Velocity = CalculateVelocity(h.Snapshots, asOf, windowDays, e.Params.Velocity.MinSpanDays)
	b.Consistency = ScoreConsistency(daily, e.Params.Consistency)
	b.Volume = ScoreVolume(daily, LatestBreakdown(h.Breakdowns, asOf), e.Params.Volume)
	b.Persistence = ScorePersistence(daily, e.Params.Persistence)
	b.RedFlags = DetectRedFlags(RedFlagInput{
		Daily:    daily,
		TopShare: b.Volume.TopShare,
		TopName:  b.Volume.TopExchange,
		Metadata: h.Metadata,
		AsOf:     asOf,
	}, e.Params.RedFlags)

	// Step b: resolve unavailable components to their fallbacks
	days := TrackingDays(h.Snapshots, asOf)
	consistency := b.Consistency.Or(ConsistencyFallback)
	persistence := b.Persistence.Score.Or(PersistenceFallback)

	// Step c: composite
	rr := e.Composite(CompositeInput{
		BaseVelocity: b.Velocity.BaseVelocity,
		Consistency:  consistency,
		Volume:       b.Volume.Score,
		Persistence:  persistence,
		Penalty:      b.RedFlags.Penalty,
		Multiplier:   multiplier,
		DaysTracking: days,
	})

	return &Evaluation{
		Snapshot: model.ScoreSnapshot{
			AssetID:                 h.Asset.ID,
			WindowDays:              windowDays,
			Timestamp:               asOf,
			BaseVelocity:            b.Velocity.BaseVelocity,
			ConsistencyScore:        consistency,
			VolumeScore:             b.Volume.Score,
			PersistenceScore:        persistence,
			RedFlagsPenalty:         b.RedFlags.Penalty,
			MarketContextMultiplier: multiplier,
			RRScore:                 rr,
			Phase:                   ClassifyPhase(b.Velocity.BaseVelocity, consistency),
			TrackingPhase:           e.TrackingPhase(days),
			DaysTracking:            days,
			StartRank:               b.Velocity.StartRank,
			EndRank:                 b.Velocity.EndRank,
			InsufficientData:        b.Velocity.Insufficient,
		},
		Breakdown: b,
	}
}

// ClassifyPhase labels the movement for display. Climbing assets are in markup when
// steady and accumulation otherwise; the rest are in decline when steady and
// distribution otherwise.
func ClassifyPhase(baseVelocity, consistency float64) model.MarketPhase {
	steady := consistency >= 5
	if baseVelocity < 0 {
		if steady {
			return model.PhaseMarkup
		}
		return model.PhaseAccumulation
	}
	if steady {
		return model.PhaseDecline
	}
	return model.PhaseDistribution
}
