package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"RankRadar/internal/model"
)

const upsertAsset = `INSERT INTO assets (asset_id, symbol, name)
	VALUES (:asset_id, :symbol, :name)
	ON CONFLICT (asset_id) DO UPDATE SET
		symbol = CASE WHEN excluded.symbol <> '' THEN excluded.symbol ELSE assets.symbol END,
		name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE assets.name END`

const upsertRank = `INSERT INTO rank_snapshots (asset_id, ts, rank, price, market_cap, volume_24h)
	VALUES (:asset_id, :ts, :rank, :price, :market_cap, :volume_24h)
	ON CONFLICT (asset_id, ts) DO UPDATE SET
		rank = excluded.rank,
		price = excluded.price,
		market_cap = excluded.market_cap,
		volume_24h = excluded.volume_24h`

const upsertVolume = `INSERT INTO exchange_volumes (asset_id, ts, exchange, volume)
	VALUES (:asset_id, :ts, :exchange, :volume)
	ON CONFLICT (asset_id, ts, exchange) DO UPDATE SET volume = excluded.volume`

const upsertMetadata = `INSERT INTO asset_metadata (asset_id, last_commit_at, exchanges, pump_group_confidence)
	VALUES (:asset_id, :last_commit_at, :exchanges, :pump_group_confidence)
	ON CONFLICT (asset_id) DO UPDATE SET
		last_commit_at = excluded.last_commit_at,
		exchanges = excluded.exchanges,
		pump_group_confidence = excluded.pump_group_confidence`

const upsertMarket = `INSERT INTO market_context (ts, btc_dominance, trend, sentiment)
	VALUES (:ts, :btc_dominance, :trend, :sentiment)
	ON CONFLICT (ts) DO UPDATE SET
		btc_dominance = excluded.btc_dominance,
		trend = excluded.trend,
		sentiment = excluded.sentiment`

const upsertScore = `INSERT INTO score_snapshots (
		asset_id, window_days, ts, base_velocity, consistency_score, volume_score,
		persistence_score, red_flags_penalty, market_context_multiplier, rr_score,
		phase, tracking_phase, days_tracking, start_rank, end_rank, insufficient_data)
	VALUES (
		:asset_id, :window_days, :ts, :base_velocity, :consistency_score, :volume_score,
		:persistence_score, :red_flags_penalty, :market_context_multiplier, :rr_score,
		:phase, :tracking_phase, :days_tracking, :start_rank, :end_rank, :insufficient_data)
	ON CONFLICT (asset_id, window_days, ts) DO UPDATE SET
		base_velocity = excluded.base_velocity,
		consistency_score = excluded.consistency_score,
		volume_score = excluded.volume_score,
		persistence_score = excluded.persistence_score,
		red_flags_penalty = excluded.red_flags_penalty,
		market_context_multiplier = excluded.market_context_multiplier,
		rr_score = excluded.rr_score,
		phase = excluded.phase,
		tracking_phase = excluded.tracking_phase,
		days_tracking = excluded.days_tracking,
		start_rank = excluded.start_rank,
		end_rank = excluded.end_rank,
		insufficient_data = excluded.insufficient_data`

const upsertWatch = `INSERT INTO watch_list (
		asset_id, symbol, name, detection_date, initial_rank, initial_score, peak_rank,
		peak_date, current_rank, current_score, status, notes, updated_at)
	VALUES (
		:asset_id, :symbol, :name, :detection_date, :initial_rank, :initial_score, :peak_rank,
		:peak_date, :current_rank, :current_score, :status, :notes, :updated_at)
	ON CONFLICT (asset_id) DO UPDATE SET
		symbol = excluded.symbol,
		name = excluded.name,
		peak_rank = excluded.peak_rank,
		peak_date = excluded.peak_date,
		current_rank = excluded.current_rank,
		current_score = excluded.current_score,
		status = excluded.status,
		notes = excluded.notes,
		updated_at = excluded.updated_at`

const upsertRun = `INSERT INTO batch_runs (
		run_id, started_at, finished_at, scored, skipped, watch_mutations, status, error)
	VALUES (
		:run_id, :started_at, :finished_at, :scored, :skipped, :watch_mutations, :status, :error)
	ON CONFLICT (run_id) DO UPDATE SET
		finished_at = excluded.finished_at,
		scored = excluded.scored,
		skipped = excluded.skipped,
		watch_mutations = excluded.watch_mutations,
		status = excluded.status,
		error = excluded.error`

// UpsertAsset registers an asset. Empty symbol or name keep the stored value.
func (s *SQLStore) UpsertAsset(ctx context.Context, a model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, upsertAsset, a); err != nil {
		return fmt.Errorf("upsert asset %s: %w", a.ID, err)
	}
	return nil
}

// InsertRankSnapshots upserts snapshots keyed by (asset, timestamp) and registers
// unknown assets.
func (s *SQLStore) InsertRankSnapshots(ctx context.Context, snaps []model.RankSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seen := map[string]bool{}
	for _, snap := range snaps {
		if !seen[snap.AssetID] {
			seen[snap.AssetID] = true
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO assets (asset_id) VALUES (?) ON CONFLICT (asset_id) DO NOTHING`), snap.AssetID); err != nil {
				return fmt.Errorf("register asset %s: %w", snap.AssetID, err)
			}
		}
		row := rankRow{
			AssetID:   snap.AssetID,
			TS:        unix(snap.Timestamp),
			Rank:      snap.Rank,
			Price:     snap.Price,
			MarketCap: snap.MarketCap,
			Volume24h: snap.Volume24h,
		}
		if _, err := tx.NamedExecContext(ctx, upsertRank, row); err != nil {
			return fmt.Errorf("upsert rank %s@%d: %w", snap.AssetID, row.TS, err)
		}
	}
	return tx.Commit()
}

// InsertExchangeVolumes upserts per-exchange volume rows.
func (s *SQLStore) InsertExchangeVolumes(ctx context.Context, breakdowns []model.ExchangeVolumeBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, b := range breakdowns {
		exchanges := make([]string, 0, len(b.Volumes))
		for ex := range b.Volumes {
			exchanges = append(exchanges, ex)
		}
		sort.Strings(exchanges)
		for _, ex := range exchanges {
			row := volumeRow{AssetID: b.AssetID, TS: unix(b.Timestamp), Exchange: ex, Volume: b.Volumes[ex]}
			if _, err := tx.NamedExecContext(ctx, upsertVolume, row); err != nil {
				return fmt.Errorf("upsert volume %s/%s: %w", b.AssetID, ex, err)
			}
		}
	}
	return tx.Commit()
}

// UpsertMetadata stores collaborator metadata. Nil fields are stored as NULL.
func (s *SQLStore) UpsertMetadata(ctx context.Context, md *model.AssetMetadata) error {
	row := metadataRow{AssetID: md.AssetID, Symbol: md.Symbol, Name: md.Name}
	if md.LastCommitAt != nil {
		row.LastCommitAt = sql.NullInt64{Int64: unix(*md.LastCommitAt), Valid: true}
	}
	if md.Exchanges != nil {
		raw, err := json.Marshal(md.Exchanges)
		if err != nil {
			return fmt.Errorf("marshal exchanges: %w", err)
		}
		row.Exchanges = sql.NullString{String: string(raw), Valid: true}
	}
	if md.PumpGroupConfidence != nil {
		row.PumpGroupConfidence = sql.NullFloat64{Float64: *md.PumpGroupConfidence, Valid: true}
	}

	if err := s.UpsertAsset(ctx, model.Asset{ID: md.AssetID, Symbol: md.Symbol, Name: md.Name}); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.NamedExecContext(ctx, upsertMetadata, row); err != nil {
		return fmt.Errorf("upsert metadata %s: %w", md.AssetID, err)
	}
	return nil
}

// InsertMarketContext stores one market-context observation.
func (s *SQLStore) InsertMarketContext(ctx context.Context, mc *model.MarketContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	trend := mc.Trend
	if trend == "" {
		trend = model.TrendFlat
	}
	row := marketRow{TS: unix(mc.Timestamp), BTCDominance: mc.BTCDominance, Trend: string(trend), Sentiment: mc.Sentiment}
	if _, err := s.db.NamedExecContext(ctx, upsertMarket, row); err != nil {
		return fmt.Errorf("upsert market context: %w", err)
	}
	return nil
}

// RecordScores upserts score snapshots in one transaction. A snapshot older than
// the newest stored one for its (asset, window) is skipped.
func (s *SQLStore) RecordScores(ctx context.Context, snaps []model.ScoreSnapshot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, snap := range snaps {
		row := newScoreRow(snap)

		var latest sql.NullInt64
		err := tx.GetContext(ctx, &latest,
			s.q(`SELECT MAX(ts) FROM score_snapshots WHERE asset_id = ? AND window_days = ?`),
			row.AssetID, row.WindowDays)
		if err != nil {
			return 0, fmt.Errorf("latest score %s/%dd: %w", row.AssetID, row.WindowDays, err)
		}
		if latest.Valid && row.TS < latest.Int64 {
			log.Debug().Str("asset", row.AssetID).Int("window", row.WindowDays).
				Time("ts", snap.Timestamp).Time("latest", fromUnix(latest.Int64)).
				Msg("skipping score older than stored snapshot")
			continue
		}

		if _, err := tx.NamedExecContext(ctx, upsertScore, row); err != nil {
			return 0, fmt.Errorf("upsert score %s/%dd: %w", row.AssetID, row.WindowDays, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit scores: %w", err)
	}
	return written, nil
}

// RecordWatchEntry upserts a watch-list entry. Detection fields are write-once.
func (s *SQLStore) RecordWatchEntry(ctx context.Context, e *model.WatchListEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.NamedExecContext(ctx, upsertWatch, newWatchRow(e)); err != nil {
		return fmt.Errorf("upsert watch entry %s: %w", e.AssetID, err)
	}
	return nil
}

// RecordRun upserts the audit row of a batch run.
func (s *SQLStore) RecordRun(ctx context.Context, run *BatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	row := runRow{
		RunID:          run.RunID,
		StartedAt:      unix(run.StartedAt),
		Scored:         run.Scored,
		Skipped:        run.Skipped,
		WatchMutations: run.WatchMutations,
		Status:         run.Status,
		Error:          run.Error,
	}
	if !run.FinishedAt.IsZero() {
		row.FinishedAt = unix(run.FinishedAt)
	}
	if _, err := s.db.NamedExecContext(ctx, upsertRun, row); err != nil {
		return fmt.Errorf("upsert run %s: %w", run.RunID, err)
	}
	return nil
}
