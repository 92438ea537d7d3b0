package watchlist

import (
	"fmt"
	"sort"
	"time"

	"RankRadar/internal/model"
)

// Params configures the watch-list lifecycle.
type Params struct {
	FailRankDrop  float64 `yaml:"fail_rank_drop"`  // fraction of the initial rank
	StallDays     float64 `yaml:"stall_days"`      // days without a new peak
	ValidateDays  float64 `yaml:"validate_days"`   // days since detection
	TrophyGainPct float64 `yaml:"trophy_gain_pct"` // rank gain for the trophy room
	PrimaryWindow int     `yaml:"primary_window"`  // window whose score drives transitions
}

// DefaultParams returns the standard lifecycle constants.
func DefaultParams() Params {
	return Params{
		FailRankDrop:  0.25,
		StallDays:     14,
		ValidateDays:  30,
		TrophyGainPct: 30,
		PrimaryWindow: 14,
	}
}

// Input is one scoring result for the primary window.
type Input struct {
	Asset     model.Asset
	Score     model.ScoreSnapshot
	Threshold float64
}

// Transition applies one cycle of the lifecycle to entry and returns the new entry and
// whether anything changed. A nil entry is created only when the score crosses the
// threshold. The input entry is never modified.
func Transition(entry *model.WatchListEntry, in Input, p Params) (*model.WatchListEntry, bool) {
	asOf := in.Score.Timestamp
	rank := in.Score.EndRank

	if entry == nil {
		if in.Score.InsufficientData || rank <= 0 || in.Score.RRScore < in.Threshold {
			return nil, false
		}
		return &model.WatchListEntry{
			AssetID:       in.Asset.ID,
			Symbol:        in.Asset.Symbol,
			Name:          in.Asset.Name,
			DetectionDate: asOf,
			InitialRank:   rank,
			InitialScore:  in.Score.RRScore,
			PeakRank:      rank,
			PeakDate:      asOf,
			CurrentRank:   rank,
			CurrentScore:  in.Score.RRScore,
			Status:        model.WatchRisingStar,
			Notes:         fmt.Sprintf("detected at rank %d (%s)", rank, in.Score.TrackingPhase),
			UpdatedAt:     asOf,
		}, true
	}

	next := *entry
	if rank <= 0 || asOf.Before(entry.UpdatedAt) {
		return entry, false
	}
	next.CurrentRank = rank
	next.CurrentScore = in.Score.RRScore

	newPeak := rank < next.PeakRank
	if newPeak {
		next.PeakRank = rank
		next.PeakDate = asOf
	}

	if next.Status != model.WatchFailed {
		next.Status, next.Notes = nextStatus(&next, newPeak, asOf, p)
	}

	if next == *entry {
		return entry, false
	}
	next.UpdatedAt = asOf
	return &next, true
}

func nextStatus(e *model.WatchListEntry, newPeak bool, asOf time.Time, p Params) (model.WatchStatus, string) {
	if float64(e.CurrentRank) >= float64(e.InitialRank)*(1+p.FailRankDrop) {
		return model.WatchFailed, fmt.Sprintf("rank %d is %.0f%% below detection rank %d",
			e.CurrentRank, -e.RankGainPercent(), e.InitialRank)
	}

	status, notes := e.Status, e.Notes
	switch status {
	case model.WatchRisingStar, model.WatchValidated:
		if days(e.PeakDate, asOf) >= p.StallDays {
			return model.WatchStalled, fmt.Sprintf("no new peak since %s", e.PeakDate.Format("2006-01-02"))
		}
	case model.WatchStalled:
		if !newPeak {
			return status, notes
		}
		status, notes = model.WatchRisingStar, fmt.Sprintf("new peak at rank %d", e.PeakRank)
	}

	if status == model.WatchRisingStar && days(e.DetectionDate, asOf) >= p.ValidateDays && e.CurrentRank < e.InitialRank {
		return model.WatchValidated, fmt.Sprintf("held gains for %.0f days", days(e.DetectionDate, asOf))
	}
	return status, notes
}

func days(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// IsTrophy reports whether an entry belongs in the trophy room.
func IsTrophy(e *model.WatchListEntry, p Params) bool {
	return e.Status == model.WatchValidated || e.RankGainPercent() > p.TrophyGainPct
}

// Trophies filters entries down to trophies, best rank gain first.
func Trophies(entries []model.WatchListEntry, p Params) []model.WatchListEntry {
	out := make([]model.WatchListEntry, 0, len(entries))
	for i := range entries {
		if IsTrophy(&entries[i], p) {
			out = append(out, entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RankGainPercent() > out[j].RankGainPercent()
	})
	return out
}
