package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"RankRadar/internal/model"
)

// ListAssets returns every registered asset ordered by id.
func (s *SQLStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var assets []model.Asset
	if err := s.db.SelectContext(ctx, &assets, `SELECT asset_id, symbol, name FROM assets ORDER BY asset_id`); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (s *SQLStore) asset(ctx context.Context, assetID string) (model.Asset, error) {
	var a model.Asset
	err := s.db.GetContext(ctx, &a, s.q(`SELECT asset_id, symbol, name FROM assets WHERE asset_id = ?`), assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	if err != nil {
		return a, fmt.Errorf("get asset %s: %w", assetID, err)
	}
	return a, nil
}

// LoadHistory loads everything the scorers need for one asset.
func (s *SQLStore) LoadHistory(ctx context.Context, assetID string, lookback time.Duration) (*model.AssetHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.asset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	h := &model.AssetHistory{Asset: a}

	var rows []rankRow
	err = s.db.SelectContext(ctx, &rows, s.q(`SELECT asset_id, ts, rank, price, market_cap, volume_24h
		FROM rank_snapshots
		WHERE asset_id = ? AND ts >= (SELECT MAX(ts) FROM rank_snapshots WHERE asset_id = ?) - ?
		ORDER BY ts`), assetID, assetID, int64(lookback.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("load ranks %s: %w", assetID, err)
	}
	if len(rows) == 0 {
		return h, nil
	}

	// the earliest snapshot anchors days_tracking and window shrinking
	var first rankRow
	err = s.db.GetContext(ctx, &first, s.q(`SELECT asset_id, ts, rank, price, market_cap, volume_24h
		FROM rank_snapshots WHERE asset_id = ? ORDER BY ts LIMIT 1`), assetID)
	if err != nil {
		return nil, fmt.Errorf("load first rank %s: %w", assetID, err)
	}
	if first.TS < rows[0].TS {
		rows = append([]rankRow{first}, rows...)
	}
	h.Snapshots = make([]model.RankSnapshot, len(rows))
	for i, r := range rows {
		h.Snapshots[i] = r.model()
	}

	from := rows[len(rows)-1].TS - int64(lookback.Seconds())
	var vols []volumeRow
	err = s.db.SelectContext(ctx, &vols, s.q(`SELECT asset_id, ts, exchange, volume
		FROM exchange_volumes WHERE asset_id = ? AND ts >= ? ORDER BY ts, exchange`), assetID, from)
	if err != nil {
		return nil, fmt.Errorf("load exchange volumes %s: %w", assetID, err)
	}
	h.Breakdowns = groupBreakdowns(vols)

	md, err := s.metadata(ctx, assetID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	h.Metadata = md
	return h, nil
}

func (s *SQLStore) metadata(ctx context.Context, assetID string) (*model.AssetMetadata, error) {
	var row metadataRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT m.asset_id, a.symbol, a.name, m.last_commit_at, m.exchanges, m.pump_group_confidence
		FROM asset_metadata m JOIN assets a ON a.asset_id = m.asset_id
		WHERE m.asset_id = ?`), assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load metadata %s: %w", assetID, err)
	}
	md, err := row.model()
	if err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", assetID, err)
	}
	return md, nil
}

// LatestMarketContext returns the newest market-context row or ErrNotFound.
func (s *SQLStore) LatestMarketContext(ctx context.Context) (*model.MarketContext, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row marketRow
	err := s.db.GetContext(ctx, &row, `SELECT ts, btc_dominance, trend, sentiment FROM market_context ORDER BY ts DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest market context: %w", err)
	}
	return row.model(), nil
}

// WatchEntry returns the entry for an asset or ErrNotFound.
func (s *SQLStore) WatchEntry(ctx context.Context, assetID string) (*model.WatchListEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row watchRow
	err := s.db.GetContext(ctx, &row, s.q(`SELECT * FROM watch_list WHERE asset_id = ?`), assetID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("watch entry %s: %w", assetID, err)
	}
	e := row.model()
	return &e, nil
}

// WatchList returns all entries, newest detection first.
func (s *SQLStore) WatchList(ctx context.Context) ([]model.WatchListEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var rows []watchRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM watch_list ORDER BY detection_date DESC, asset_id`); err != nil {
		return nil, fmt.Errorf("watch list: %w", err)
	}
	out := make([]model.WatchListEntry, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// LatestRun returns the most recently started batch run or ErrNotFound.
func (s *SQLStore) LatestRun(ctx context.Context) (*BatchRun, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM batch_runs ORDER BY started_at DESC, run_id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return row.model(), nil
}
