package model

import "time"

// WatchStatus is the lifecycle state of a watch-list entry.
type WatchStatus string

const (
	WatchRisingStar WatchStatus = "rising_star"
	WatchValidated  WatchStatus = "validated"
	WatchStalled    WatchStatus = "stalled"
	WatchFailed     WatchStatus = "failed"
)

// WatchListEntry records an asset from the moment it first crossed the detection threshold.
type WatchListEntry struct {
	AssetID       string      `json:"coin_id"`
	Symbol        string      `json:"symbol"`
	Name          string      `json:"name"`
	DetectionDate time.Time   `json:"detection_date"`
	InitialRank   int         `json:"initial_rank"`
	InitialScore  float64     `json:"initial_score"`
	PeakRank      int         `json:"peak_rank"`
	PeakDate      time.Time   `json:"peak_date"`
	CurrentRank   int         `json:"current_rank"`
	CurrentScore  float64     `json:"current_score"`
	Status        WatchStatus `json:"status"`
	Notes         string      `json:"notes,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// RankGainPercent is the rank improvement since detection as a percentage of the initial rank.
func (e *WatchListEntry) RankGainPercent() float64 {
	if e.InitialRank <= 0 {
		return 0
	}
	return float64(e.InitialRank-e.CurrentRank) / float64(e.InitialRank) * 100
}
