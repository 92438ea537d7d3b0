package strategy

import (
	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// Multiplier bounds.
const (
	MinMarketMultiplier = 0.5
	MaxMarketMultiplier = 1.5
)

// TrendAdjuster nudges the dominance multiplier by the short-term trend.
type TrendAdjuster interface {
	Adjust(base float64, trend model.DominanceTrend) float64
}

// NoTrendAdjustment keeps the step-function value.
type NoTrendAdjustment struct{}

func (NoTrendAdjustment) Adjust(base float64, _ model.DominanceTrend) float64 { return base }

// StepTrendAdjustment lowers the multiplier by Delta while dominance rises and raises it while dominance falls.
type StepTrendAdjustment struct {
	Delta float64
}

func (s StepTrendAdjustment) Adjust(base float64, trend model.DominanceTrend) float64 {
	switch trend {
	case model.TrendRising:
		return base - s.Delta
	case model.TrendFalling:
		return base + s.Delta
	default:
		return base
	}
}

// NewTrendAdjuster picks the adjuster configured by p.
func NewTrendAdjuster(p MarketParams) TrendAdjuster {
	if p.TrendDelta > 0 {
		return StepTrendAdjustment{Delta: p.TrendDelta}
	}
	return NoTrendAdjustment{}
}

// MarketMultiplier maps BTC dominance to a multiplier in [0.5, 1.5].
// Low dominance favours altcoins; an unknown context is neutral.
func MarketMultiplier(mc *model.MarketContext, p MarketParams, adj TrendAdjuster) float64 {
	if mc == nil {
		return 1.0
	}
	var base float64
	switch {
	case mc.BTCDominance < p.LowDominance:
		base = 1.5
	case mc.BTCDominance > p.HighDominance:
		base = 0.5
	default:
		base = 1.0
	}
	if adj != nil {
		base = adj.Adjust(base, mc.Trend)
	}
	return calculator.Clamp(calculator.Finite(base, 1.0), MinMarketMultiplier, MaxMarketMultiplier)
}
