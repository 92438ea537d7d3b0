package model

import (
	"sort"
	"time"
)

// RankSnapshot is one observation of an asset's market-cap position.
type RankSnapshot struct {
	AssetID   string    `json:"asset_id"`
	Timestamp time.Time `json:"timestamp"`
	Rank      int       `json:"rank"`
	Price     float64   `json:"price"`
	MarketCap float64   `json:"market_cap"`
	Volume24h float64   `json:"volume_24h"`
}

// ExchangeVolumeBreakdown maps exchange identifiers to traded volume at one point in time.
type ExchangeVolumeBreakdown struct {
	AssetID   string             `json:"asset_id"`
	Timestamp time.Time          `json:"timestamp"`
	Volumes   map[string]float64 `json:"volumes"`
}

// Total returns the summed positive volume across all exchanges. Exchanges are
// added in name order so the float sum is reproducible.
func (b *ExchangeVolumeBreakdown) Total() float64 {
	total := 0.0
	for _, ex := range b.exchanges() {
		if v := b.Volumes[ex]; v > 0 {
			total += v
		}
	}
	return total
}

// Top returns the exchange with the largest positive volume. Ties resolve to the
// lexicographically smallest name.
func (b *ExchangeVolumeBreakdown) Top() (string, float64) {
	var name string
	best := 0.0
	for _, ex := range b.exchanges() {
		if v := b.Volumes[ex]; v > best {
			name, best = ex, v
		}
	}
	return name, best
}

func (b *ExchangeVolumeBreakdown) exchanges() []string {
	names := make([]string, 0, len(b.Volumes))
	for ex := range b.Volumes {
		names = append(names, ex)
	}
	sort.Strings(names)
	return names
}

// AssetMetadata is optional collaborator data used by red-flag checks.
// Nil fields mean the value is unknown.
type AssetMetadata struct {
	AssetID             string     `json:"asset_id"`
	Symbol              string     `json:"symbol"`
	Name                string     `json:"name"`
	LastCommitAt        *time.Time `json:"last_commit_at,omitempty"`
	Exchanges           []string   `json:"exchanges,omitempty"`
	PumpGroupConfidence *float64   `json:"pump_group_confidence,omitempty"`
}

// Asset identifies a tracked coin.
type Asset struct {
	ID     string `json:"id" db:"asset_id"`
	Symbol string `json:"symbol" db:"symbol"`
	Name   string `json:"name" db:"name"`
}

// AssetHistory is everything the scorers need for one asset.
type AssetHistory struct {
	Asset      Asset
	Snapshots  []RankSnapshot // ascending by Timestamp, unique timestamps
	Breakdowns []ExchangeVolumeBreakdown
	Metadata   *AssetMetadata
}

// Latest returns the newest snapshot, or false when the history is empty.
func (h *AssetHistory) Latest() (RankSnapshot, bool) {
	if len(h.Snapshots) == 0 {
		return RankSnapshot{}, false
	}
	return h.Snapshots[len(h.Snapshots)-1], true
}

// DominanceTrend is the short-term direction of BTC dominance.
type DominanceTrend string

const (
	TrendRising  DominanceTrend = "rising"
	TrendFalling DominanceTrend = "falling"
	TrendFlat    DominanceTrend = "flat"
)

// MarketContext is the global input shared by every asset in a batch.
type MarketContext struct {
	Timestamp    time.Time      `json:"timestamp"`
	BTCDominance float64        `json:"btc_dominance"`
	Trend        DominanceTrend `json:"trend"`
	Sentiment    string         `json:"sentiment,omitempty"`
}
