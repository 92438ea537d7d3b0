package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"RankRadar/internal/model"
)

const (
	defaultDashboardLimit = 100
	maxDashboardLimit     = 500
	historyLimit          = 500
)

type dashboardRow struct {
	AssetID     string         `db:"asset_id"`
	Symbol      string         `db:"symbol"`
	Name        string         `db:"name"`
	TS          int64          `db:"ts"`
	Rank        int            `db:"rank"`
	Price       float64        `db:"price"`
	MarketCap   float64        `db:"market_cap"`
	Volume24h   float64        `db:"volume_24h"`
	Score       scoreColumns   `db:"s"`
	WatchStatus sql.NullString `db:"watch_status"`
}

// scoreColumns is a score row from a LEFT JOIN, where every column may be NULL.
type scoreColumns struct {
	WindowDays              sql.NullInt64   `db:"window_days"`
	TS                      sql.NullInt64   `db:"ts"`
	BaseVelocity            sql.NullFloat64 `db:"base_velocity"`
	ConsistencyScore        sql.NullFloat64 `db:"consistency_score"`
	VolumeScore             sql.NullFloat64 `db:"volume_score"`
	PersistenceScore        sql.NullFloat64 `db:"persistence_score"`
	RedFlagsPenalty         sql.NullFloat64 `db:"red_flags_penalty"`
	MarketContextMultiplier sql.NullFloat64 `db:"market_context_multiplier"`
	RRScore                 sql.NullFloat64 `db:"rr_score"`
	Phase                   sql.NullString  `db:"phase"`
	TrackingPhase           sql.NullString  `db:"tracking_phase"`
	DaysTracking            sql.NullInt64   `db:"days_tracking"`
	StartRank               sql.NullInt64   `db:"start_rank"`
	EndRank                 sql.NullInt64   `db:"end_rank"`
	InsufficientData        sql.NullInt64   `db:"insufficient_data"`
}

func (c scoreColumns) model(assetID string) *model.ScoreSnapshot {
	if !c.TS.Valid {
		return nil
	}
	return &model.ScoreSnapshot{
		AssetID:                 assetID,
		WindowDays:              int(c.WindowDays.Int64),
		Timestamp:               fromUnix(c.TS.Int64),
		BaseVelocity:            c.BaseVelocity.Float64,
		ConsistencyScore:        c.ConsistencyScore.Float64,
		VolumeScore:             c.VolumeScore.Float64,
		PersistenceScore:        c.PersistenceScore.Float64,
		RedFlagsPenalty:         c.RedFlagsPenalty.Float64,
		MarketContextMultiplier: c.MarketContextMultiplier.Float64,
		RRScore:                 c.RRScore.Float64,
		Phase:                   model.MarketPhase(c.Phase.String),
		TrackingPhase:           model.TrackingPhase(c.TrackingPhase.String),
		DaysTracking:            int(c.DaysTracking.Int64),
		StartRank:               int(c.StartRank.Int64),
		EndRank:                 int(c.EndRank.Int64),
		InsufficientData:        c.InsufficientData.Int64 != 0,
	}
}

// Dashboard lists assets with their latest rank and latest score for f.WindowDays.
// Rank bounds apply to the latest rank; MinScore excludes unscored assets when positive.
func (s *SQLStore) Dashboard(ctx context.Context, f DashboardFilter) ([]DashboardRow, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if f.Limit <= 0 {
		f.Limit = defaultDashboardLimit
	}
	if f.Limit > maxDashboardLimit {
		f.Limit = maxDashboardLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	order := `COALESCE(s.rr_score, -1) DESC, r.rank ASC`
	if f.SortBy == SortByVelocity {
		// climbing assets have negative velocity
		order = `COALESCE(s.base_velocity, 0) ASC, r.rank ASC`
	}

	query := `SELECT
			a.asset_id, a.symbol, a.name,
			r.ts, r.rank, r.price, r.market_cap, r.volume_24h,
			s.window_days AS "s.window_days", s.ts AS "s.ts",
			s.base_velocity AS "s.base_velocity", s.consistency_score AS "s.consistency_score",
			s.volume_score AS "s.volume_score", s.persistence_score AS "s.persistence_score",
			s.red_flags_penalty AS "s.red_flags_penalty",
			s.market_context_multiplier AS "s.market_context_multiplier",
			s.rr_score AS "s.rr_score", s.phase AS "s.phase", s.tracking_phase AS "s.tracking_phase",
			s.days_tracking AS "s.days_tracking", s.start_rank AS "s.start_rank",
			s.end_rank AS "s.end_rank", s.insufficient_data AS "s.insufficient_data",
			w.status AS watch_status
		FROM assets a
		JOIN rank_snapshots r ON r.asset_id = a.asset_id
			AND r.ts = (SELECT MAX(ts) FROM rank_snapshots WHERE asset_id = a.asset_id)
		LEFT JOIN score_snapshots s ON s.asset_id = a.asset_id AND s.window_days = ?
			AND s.ts = (SELECT MAX(ts) FROM score_snapshots WHERE asset_id = a.asset_id AND window_days = ?)
		LEFT JOIN watch_list w ON w.asset_id = a.asset_id
		WHERE (? <= 0 OR r.rank >= ?) AND (? <= 0 OR r.rank <= ?)
			AND (? <= 0.0 OR COALESCE(s.rr_score, 0) >= ?)
		ORDER BY ` + order + `, a.asset_id
		LIMIT ? OFFSET ?`

	var rows []dashboardRow
	err := s.db.SelectContext(ctx, &rows, s.q(query),
		f.WindowDays, f.WindowDays,
		f.MinRank, f.MinRank, f.MaxRank, f.MaxRank,
		f.MinScore, f.MinScore,
		f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	out := make([]DashboardRow, len(rows))
	for i, r := range rows {
		latest := rankRow{AssetID: r.AssetID, TS: r.TS, Rank: r.Rank, Price: r.Price, MarketCap: r.MarketCap, Volume24h: r.Volume24h}
		out[i] = DashboardRow{
			Asset:       model.Asset{ID: r.AssetID, Symbol: r.Symbol, Name: r.Name},
			Latest:      latest.model(),
			Score:       r.Score.model(r.AssetID),
			WatchStatus: model.WatchStatus(r.WatchStatus.String),
		}
	}
	return out, nil
}

// CoinDetails loads the coin page for one asset and window.
func (s *SQLStore) CoinDetails(ctx context.Context, assetID string, windowDays int) (*CoinDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.asset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	d := &CoinDetails{Asset: a}

	var ranks []rankRow
	err = s.db.SelectContext(ctx, &ranks, s.q(`SELECT asset_id, ts, rank, price, market_cap, volume_24h
		FROM rank_snapshots WHERE asset_id = ? ORDER BY ts DESC LIMIT ?`), assetID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("rank history %s: %w", assetID, err)
	}
	d.Rankings = make([]model.RankSnapshot, len(ranks))
	for i, r := range ranks {
		// ascending for charting
		d.Rankings[len(ranks)-1-i] = r.model()
	}
	if len(ranks) > 0 {
		d.Latest = ranks[0].model()
	}

	var scores []scoreRow
	err = s.db.SelectContext(ctx, &scores, s.q(`SELECT * FROM score_snapshots
		WHERE asset_id = ? AND window_days = ? ORDER BY ts DESC LIMIT ?`), assetID, windowDays, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("score history %s: %w", assetID, err)
	}
	d.Scores = make([]model.ScoreSnapshot, len(scores))
	for i, r := range scores {
		d.Scores[len(scores)-1-i] = r.model()
	}
	if len(scores) > 0 {
		latest := scores[0].model()
		d.Score = &latest
	}

	if d.Metadata, err = s.metadata(ctx, assetID); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var vols []volumeRow
	err = s.db.SelectContext(ctx, &vols, s.q(`SELECT asset_id, ts, exchange, volume FROM exchange_volumes
		WHERE asset_id = ? AND ts = (SELECT MAX(ts) FROM exchange_volumes WHERE asset_id = ?)
		ORDER BY exchange`), assetID, assetID)
	if err != nil {
		return nil, fmt.Errorf("exchange volumes %s: %w", assetID, err)
	}
	if b := groupBreakdowns(vols); len(b) > 0 {
		d.Breakdown = &b[0]
	}

	var w watchRow
	err = s.db.GetContext(ctx, &w, s.q(`SELECT * FROM watch_list WHERE asset_id = ?`), assetID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("watch entry %s: %w", assetID, err)
	default:
		e := w.model()
		d.WatchEntry = &e
	}
	return d, nil
}
