package recorder

import (
	"database/sql"
	"encoding/json"

	"RankRadar/internal/model"
)

type rankRow struct {
	AssetID   string  `db:"asset_id"`
	TS        int64   `db:"ts"`
	Rank      int     `db:"rank"`
	Price     float64 `db:"price"`
	MarketCap float64 `db:"market_cap"`
	Volume24h float64 `db:"volume_24h"`
}

func (r rankRow) model() model.RankSnapshot {
	return model.RankSnapshot{
		AssetID:   r.AssetID,
		Timestamp: fromUnix(r.TS),
		Rank:      r.Rank,
		Price:     r.Price,
		MarketCap: r.MarketCap,
		Volume24h: r.Volume24h,
	}
}

type volumeRow struct {
	AssetID  string  `db:"asset_id"`
	TS       int64   `db:"ts"`
	Exchange string  `db:"exchange"`
	Volume   float64 `db:"volume"`
}

// groupBreakdowns folds per-exchange rows, ordered by ts, into breakdowns.
func groupBreakdowns(rows []volumeRow) []model.ExchangeVolumeBreakdown {
	var out []model.ExchangeVolumeBreakdown
	for _, r := range rows {
		if n := len(out); n == 0 || out[n-1].Timestamp.Unix() != r.TS {
			out = append(out, model.ExchangeVolumeBreakdown{
				AssetID:   r.AssetID,
				Timestamp: fromUnix(r.TS),
				Volumes:   map[string]float64{},
			})
		}
		out[len(out)-1].Volumes[r.Exchange] = r.Volume
	}
	return out
}

type metadataRow struct {
	AssetID             string          `db:"asset_id"`
	Symbol              string          `db:"symbol"`
	Name                string          `db:"name"`
	LastCommitAt        sql.NullInt64   `db:"last_commit_at"`
	Exchanges           sql.NullString  `db:"exchanges"`
	PumpGroupConfidence sql.NullFloat64 `db:"pump_group_confidence"`
}

func (r metadataRow) model() (*model.AssetMetadata, error) {
	md := &model.AssetMetadata{AssetID: r.AssetID, Symbol: r.Symbol, Name: r.Name}
	if r.LastCommitAt.Valid {
		t := fromUnix(r.LastCommitAt.Int64)
		md.LastCommitAt = &t
	}
	if r.Exchanges.Valid {
		md.Exchanges = []string{}
		if err := json.Unmarshal([]byte(r.Exchanges.String), &md.Exchanges); err != nil {
			return nil, err
		}
	}
	if r.PumpGroupConfidence.Valid {
		c := r.PumpGroupConfidence.Float64
		md.PumpGroupConfidence = &c
	}
	return md, nil
}

type marketRow struct {
	TS           int64   `db:"ts"`
	BTCDominance float64 `db:"btc_dominance"`
	Trend        string  `db:"trend"`
	Sentiment    string  `db:"sentiment"`
}

func (r marketRow) model() *model.MarketContext {
	return &model.MarketContext{
		Timestamp:    fromUnix(r.TS),
		BTCDominance: r.BTCDominance,
		Trend:        model.DominanceTrend(r.Trend),
		Sentiment:    r.Sentiment,
	}
}

type scoreRow struct {
	AssetID                 string  `db:"asset_id"`
	WindowDays              int     `db:"window_days"`
	TS                      int64   `db:"ts"`
	BaseVelocity            float64 `db:"base_velocity"`
	ConsistencyScore        float64 `db:"consistency_score"`
	VolumeScore             float64 `db:"volume_score"`
	PersistenceScore        float64 `db:"persistence_score"`
	RedFlagsPenalty         float64 `db:"red_flags_penalty"`
	MarketContextMultiplier float64 `db:"market_context_multiplier"`
	RRScore                 float64 `db:"rr_score"`
	Phase                   string  `db:"phase"`
	TrackingPhase           string  `db:"tracking_phase"`
	DaysTracking            int     `db:"days_tracking"`
	StartRank               int     `db:"start_rank"`
	EndRank                 int     `db:"end_rank"`
	InsufficientData        int     `db:"insufficient_data"`
}

func newScoreRow(s model.ScoreSnapshot) scoreRow {
	r := scoreRow{
		AssetID:                 s.AssetID,
		WindowDays:              s.WindowDays,
		TS:                      unix(s.Timestamp),
		BaseVelocity:            s.BaseVelocity,
		ConsistencyScore:        s.ConsistencyScore,
		VolumeScore:             s.VolumeScore,
		PersistenceScore:        s.PersistenceScore,
		RedFlagsPenalty:         s.RedFlagsPenalty,
		MarketContextMultiplier: s.MarketContextMultiplier,
		RRScore:                 s.RRScore,
		Phase:                   string(s.Phase),
		TrackingPhase:           string(s.TrackingPhase),
		DaysTracking:            s.DaysTracking,
		StartRank:               s.StartRank,
		EndRank:                 s.EndRank,
	}
	if s.InsufficientData {
		r.InsufficientData = 1
	}
	return r
}

func (r scoreRow) model() model.ScoreSnapshot {
	return model.ScoreSnapshot{
		AssetID:                 r.AssetID,
		WindowDays:              r.WindowDays,
		Timestamp:               fromUnix(r.TS),
		BaseVelocity:            r.BaseVelocity,
		ConsistencyScore:        r.ConsistencyScore,
		VolumeScore:             r.VolumeScore,
		PersistenceScore:        r.PersistenceScore,
		RedFlagsPenalty:         r.RedFlagsPenalty,
		MarketContextMultiplier: r.MarketContextMultiplier,
		RRScore:                 r.RRScore,
		Phase:                   model.MarketPhase(r.Phase),
		TrackingPhase:           model.TrackingPhase(r.TrackingPhase),
		DaysTracking:            r.DaysTracking,
		StartRank:               r.StartRank,
		EndRank:                 r.EndRank,
		InsufficientData:        r.InsufficientData != 0,
	}
}

type watchRow struct {
	AssetID       string  `db:"asset_id"`
	Symbol        string  `db:"symbol"`
	Name          string  `db:"name"`
	DetectionDate int64   `db:"detection_date"`
	InitialRank   int     `db:"initial_rank"`
	InitialScore  float64 `db:"initial_score"`
	PeakRank      int     `db:"peak_rank"`
	PeakDate      int64   `db:"peak_date"`
	CurrentRank   int     `db:"current_rank"`
	CurrentScore  float64 `db:"current_score"`
	Status        string  `db:"status"`
	Notes         string  `db:"notes"`
	UpdatedAt     int64   `db:"updated_at"`
}

func newWatchRow(e *model.WatchListEntry) watchRow {
	return watchRow{
		AssetID:       e.AssetID,
		Symbol:        e.Symbol,
		Name:          e.Name,
		DetectionDate: unix(e.DetectionDate),
		InitialRank:   e.InitialRank,
		InitialScore:  e.InitialScore,
		PeakRank:      e.PeakRank,
		PeakDate:      unix(e.PeakDate),
		CurrentRank:   e.CurrentRank,
		CurrentScore:  e.CurrentScore,
		Status:        string(e.Status),
		Notes:         e.Notes,
		UpdatedAt:     unix(e.UpdatedAt),
	}
}

func (r watchRow) model() model.WatchListEntry {
	return model.WatchListEntry{
		AssetID:       r.AssetID,
		Symbol:        r.Symbol,
		Name:          r.Name,
		DetectionDate: fromUnix(r.DetectionDate),
		InitialRank:   r.InitialRank,
		InitialScore:  r.InitialScore,
		PeakRank:      r.PeakRank,
		PeakDate:      fromUnix(r.PeakDate),
		CurrentRank:   r.CurrentRank,
		CurrentScore:  r.CurrentScore,
		Status:        model.WatchStatus(r.Status),
		Notes:         r.Notes,
		UpdatedAt:     fromUnix(r.UpdatedAt),
	}
}

type runRow struct {
	RunID          string `db:"run_id"`
	StartedAt      int64  `db:"started_at"`
	FinishedAt     int64  `db:"finished_at"`
	Scored         int    `db:"scored"`
	Skipped        int    `db:"skipped"`
	WatchMutations int    `db:"watch_mutations"`
	Status         string `db:"status"`
	Error          string `db:"error"`
}

func (r runRow) model() *BatchRun {
	run := &BatchRun{
		RunID:          r.RunID,
		StartedAt:      fromUnix(r.StartedAt),
		Scored:         r.Scored,
		Skipped:        r.Skipped,
		WatchMutations: r.WatchMutations,
		Status:         r.Status,
		Error:          r.Error,
	}
	if r.FinishedAt > 0 {
		run.FinishedAt = fromUnix(r.FinishedAt)
	}
	return run
}
