package strategy

import (
	"math"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// VolumeResult carries the volume score and its three sub-signals, each in [0,1].
type VolumeResult struct {
	Score        float64
	Consistency  model.Component // VC
	Distribution model.Component // ED
	Lead         model.Component // LI
	TopExchange  string
	TopShare     model.Component // share of the largest exchange, for the concentration flag
}

// ScoreVolume separates organic from manipulated volume using volume consistency,
// exchange distribution and a volume-leads-price correlation.
func ScoreVolume(points []calculator.DailyPoint, breakdown *model.ExchangeVolumeBreakdown, p VolumeParams) VolumeResult {
	res := VolumeResult{
		Consistency: volumeConsistency(calculator.Volumes(points)),
		Lead:        leadIndicator(points, p.MinLeadPairs),
	}
	res.Distribution, res.TopShare, res.TopExchange = exchangeDistribution(breakdown)

	vc := res.Consistency.Or(0)
	ed := res.Distribution.Or(0)
	li := res.Lead.Or(0.5)
	raw := 10 * (p.ConsistencyWeight*vc + p.DistributionWeight*ed + p.LeadWeight*li)
	res.Score = calculator.Clamp(calculator.Finite(raw, 0), 0, 10)
	return res
}

func volumeConsistency(volumes []float64) model.Component {
	if len(volumes) < 2 {
		return model.Unavailable("insufficient volume history")
	}
	mu := calculator.Mean(volumes)
	if math.Abs(mu) < calculator.Epsilon {
		return model.Computed(0)
	}
	cv := calculator.SafeDivide(calculator.StdDev(volumes), mu, math.Inf(1))
	return model.Computed(calculator.Clamp(1-cv, 0, 1))
}

func exchangeDistribution(b *model.ExchangeVolumeBreakdown) (ed, topShare model.Component, topName string) {
	if b == nil || len(b.Volumes) == 0 {
		return model.Unavailable("no exchange breakdown"), model.Unavailable("no exchange breakdown"), ""
	}
	total := b.Total()
	name, top := b.Top()
	if total <= 0 {
		return model.Unavailable("empty exchange breakdown"), model.Unavailable("empty exchange breakdown"), name
	}
	share := calculator.Clamp(top/total, 0, 1)
	return model.Computed(1 - share), model.Computed(share), name
}

// leadIndicator correlates volume on day t with price on day t+1 and maps [-1,1] onto [0,1].
func leadIndicator(points []calculator.DailyPoint, minPairs int) model.Component {
	if len(points) < 2 {
		return model.Unavailable("insufficient price history")
	}
	vols := make([]float64, 0, len(points)-1)
	nextPrices := make([]float64, 0, len(points)-1)
	for i := 0; i+1 < len(points); i++ {
		vols = append(vols, points[i].Volume)
		nextPrices = append(nextPrices, points[i+1].Price)
	}
	if len(vols) < minPairs {
		return model.Unavailable("insufficient volume/price pairs")
	}
	r := calculator.PearsonCorrelation(vols, nextPrices)
	return model.Computed(calculator.Clamp((r+1)/2, 0, 1))
}

// LatestBreakdown returns the newest breakdown at or before asOf.
func LatestBreakdown(breakdowns []model.ExchangeVolumeBreakdown, asOf time.Time) *model.ExchangeVolumeBreakdown {
	var latest *model.ExchangeVolumeBreakdown
	for i := range breakdowns {
		b := &breakdowns[i]
		if b.Timestamp.After(asOf) {
			continue
		}
		if latest == nil || b.Timestamp.After(latest.Timestamp) {
			latest = b
		}
	}
	return latest
}
