package api

import (
	"time"

	"RankRadar/internal/model"
	"RankRadar/internal/recorder"
	"RankRadar/internal/strategy"
)

// CoinData is one dashboard row. Score fields are null when the asset has not
// been scored for the requested window.
type CoinData struct {
	CoinID    string  `json:"coin_id"`
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Rank      int     `json:"rank"`
	MarketCap float64 `json:"market_cap"`
	Volume24h float64 `json:"volume_24h"`
	Price     float64 `json:"price"`

	RRScore                 *float64 `json:"rr_score"`
	ConsistencyScore        *float64 `json:"consistency_score"`
	VolumeScore             *float64 `json:"volume_score"`
	PersistenceScore        *float64 `json:"persistence_score"`
	RedFlagsPenalty         *float64 `json:"red_flags_penalty"`
	BaseVelocity            *float64 `json:"base_velocity"`
	DaysTracking            *int     `json:"days_tracking"`
	Phase                   *string  `json:"phase"`
	MarketContextMultiplier *float64 `json:"market_context_multiplier"`
	Timestamp               string   `json:"timestamp"`

	StartRank   *int    `json:"start_rank,omitempty"`
	EndRank     *int    `json:"end_rank,omitempty"`
	WatchStatus *string `json:"watch_status,omitempty"`
}

// Filters echoes the dashboard query after defaults are applied.
type Filters struct {
	Window   int     `json:"window"`
	MinRank  int     `json:"minRank"`
	MaxRank  int     `json:"maxRank"`
	MinScore float64 `json:"minScore"`
	Limit    int     `json:"limit"`
	Offset   int     `json:"offset"`
	SortBy   string  `json:"sortBy"`
}

// MarketContextView is the market-wide backdrop shown above the dashboard table.
type MarketContextView struct {
	BTCDominance float64 `json:"btcDominance"`
	Sentiment    *string `json:"sentiment"`
	Timestamp    string  `json:"timestamp"`
}

// DashboardResponse is the body of GET /api/dashboard.
type DashboardResponse struct {
	Success       bool               `json:"success"`
	Data          []CoinData         `json:"data"`
	Count         int                `json:"count"`
	Filters       Filters            `json:"filters"`
	MarketContext *MarketContextView `json:"marketContext"`
	Timestamp     string             `json:"timestamp"`
}

// CoinView identifies an asset and its latest observed rank.
type CoinView struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentRank  int     `json:"currentRank"`
	CurrentPrice float64 `json:"currentPrice"`
	MarketCap    float64 `json:"marketCap"`
	Volume24h    float64 `json:"volume24h"`
}

// ScoreView is one window's score for an asset, components included.
type ScoreView struct {
	RRScore          float64 `json:"rrScore"`
	ConsistencyScore float64 `json:"consistencyScore"`
	VolumeScore      float64 `json:"volumeScore"`
	PersistenceScore float64 `json:"persistenceScore"`
	RedFlagsPenalty  float64 `json:"redFlagsPenalty"`
	BaseVelocity     float64 `json:"baseVelocity"`
	VelocityLabel    string  `json:"velocityLabel"`
	Phase            string  `json:"phase"`
	TrackingPhase    string  `json:"trackingPhase"`
	DaysTracking     int     `json:"daysTracking"`
	Window           int     `json:"window"`
}

// RankPoint is a single rank observation in a coin's history.
type RankPoint struct {
	Timestamp string  `json:"timestamp"`
	Rank      int     `json:"rank"`
	MarketCap float64 `json:"market_cap"`
	Volume24h float64 `json:"volume_24h"`
	Price     float64 `json:"price"`
}

// ScorePoint is a single stored score in a coin's history.
type ScorePoint struct {
	Timestamp        string  `json:"timestamp"`
	RRScore          float64 `json:"rr_score"`
	ConsistencyScore float64 `json:"consistency_score"`
	VolumeScore      float64 `json:"volume_score"`
	PersistenceScore float64 `json:"persistence_score"`
	RedFlagsPenalty  float64 `json:"red_flags_penalty"`
	BaseVelocity     float64 `json:"base_velocity"`
}

// History holds the rank and score series for one coin.
type History struct {
	Rankings []RankPoint  `json:"rankings"`
	Scores   []ScorePoint `json:"scores"`
}

// CoinDetailsResponse is the body of GET /api/coins/{id}.
type CoinDetailsResponse struct {
	Success         bool                           `json:"success"`
	Coin            CoinView                       `json:"coin"`
	Score           *ScoreView                     `json:"score"`
	History         History                        `json:"history"`
	Metadata        *model.AssetMetadata           `json:"metadata"`
	ExchangeVolumes *model.ExchangeVolumeBreakdown `json:"exchangeVolumes"`
	WatchList       *model.WatchListEntry          `json:"watchList"`
	Timestamp       string                         `json:"timestamp"`
}

// WatchListResponse is the body of GET /api/watchlist and GET /api/trophies.
type WatchListResponse struct {
	Success   bool                   `json:"success"`
	Data      []model.WatchListEntry `json:"data"`
	Count     int                    `json:"count"`
	Timestamp string                 `json:"timestamp"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Success   bool               `json:"success"`
	Status    string             `json:"status"`
	Database  string             `json:"database"`
	Cache     string             `json:"cache"`
	LastRun   *recorder.BatchRun `json:"lastRun"`
	Timestamp string             `json:"timestamp"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func coinData(r recorder.DashboardRow) CoinData {
	c := CoinData{
		CoinID:    r.Asset.ID,
		Symbol:    r.Asset.Symbol,
		Name:      r.Asset.Name,
		Rank:      r.Latest.Rank,
		MarketCap: r.Latest.MarketCap,
		Volume24h: r.Latest.Volume24h,
		Price:     r.Latest.Price,
		Timestamp: stamp(r.Latest.Timestamp),
	}
	if s := r.Score; s != nil {
		phase := string(s.Phase)
		c.RRScore = &s.RRScore
		c.ConsistencyScore = &s.ConsistencyScore
		c.VolumeScore = &s.VolumeScore
		c.PersistenceScore = &s.PersistenceScore
		c.RedFlagsPenalty = &s.RedFlagsPenalty
		c.BaseVelocity = &s.BaseVelocity
		c.DaysTracking = &s.DaysTracking
		c.Phase = &phase
		c.MarketContextMultiplier = &s.MarketContextMultiplier
		c.StartRank = &s.StartRank
		c.EndRank = &s.EndRank
	}
	if r.WatchStatus != "" {
		status := string(r.WatchStatus)
		c.WatchStatus = &status
	}
	return c
}

func marketContextView(mc *model.MarketContext) *MarketContextView {
	if mc == nil {
		return nil
	}
	v := &MarketContextView{BTCDominance: mc.BTCDominance, Timestamp: stamp(mc.Timestamp)}
	if mc.Sentiment != "" {
		v.Sentiment = &mc.Sentiment
	}
	return v
}

func coinDetails(d *recorder.CoinDetails, now time.Time) CoinDetailsResponse {
	resp := CoinDetailsResponse{
		Success: true,
		Coin: CoinView{
			ID:           d.Asset.ID,
			Symbol:       d.Asset.Symbol,
			Name:         d.Asset.Name,
			CurrentRank:  d.Latest.Rank,
			CurrentPrice: d.Latest.Price,
			MarketCap:    d.Latest.MarketCap,
			Volume24h:    d.Latest.Volume24h,
		},
		History: History{
			Rankings: make([]RankPoint, len(d.Rankings)),
			Scores:   make([]ScorePoint, len(d.Scores)),
		},
		Metadata:        d.Metadata,
		ExchangeVolumes: d.Breakdown,
		WatchList:       d.WatchEntry,
		Timestamp:       stamp(now),
	}
	if s := d.Score; s != nil {
		resp.Score = &ScoreView{
			RRScore:          s.RRScore,
			ConsistencyScore: s.ConsistencyScore,
			VolumeScore:      s.VolumeScore,
			PersistenceScore: s.PersistenceScore,
			RedFlagsPenalty:  s.RedFlagsPenalty,
			BaseVelocity:     s.BaseVelocity,
			VelocityLabel:    strategy.InterpretVelocity(-s.BaseVelocity),
			Phase:            string(s.Phase),
			TrackingPhase:    string(s.TrackingPhase),
			DaysTracking:     s.DaysTracking,
			Window:           s.WindowDays,
		}
	}
	for i, r := range d.Rankings {
		resp.History.Rankings[i] = RankPoint{
			Timestamp: stamp(r.Timestamp),
			Rank:      r.Rank,
			MarketCap: r.MarketCap,
			Volume24h: r.Volume24h,
			Price:     r.Price,
		}
	}
	for i, s := range d.Scores {
		resp.History.Scores[i] = ScorePoint{
			Timestamp:        stamp(s.Timestamp),
			RRScore:          s.RRScore,
			ConsistencyScore: s.ConsistencyScore,
			VolumeScore:      s.VolumeScore,
			PersistenceScore: s.PersistenceScore,
			RedFlagsPenalty:  s.RedFlagsPenalty,
			BaseVelocity:     s.BaseVelocity,
		}
	}
	return resp
}
