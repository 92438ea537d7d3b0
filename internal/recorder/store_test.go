package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RankRadar/internal/model"
)

var t0 = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time { return t0.Add(time.Duration(n) * 24 * time.Hour) }

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "rankradar.db"), 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRanks(t *testing.T, s *SQLStore, assetID string, ranks ...int) {
	t.Helper()
	snaps := make([]model.RankSnapshot, len(ranks))
	for i, r := range ranks {
		snaps[i] = model.RankSnapshot{AssetID: assetID, Timestamp: day(i), Rank: r, Price: float64(i + 1), Volume24h: 1000}
	}
	require.NoError(t, s.InsertRankSnapshots(context.Background(), snaps))
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rankradar.db")
	s, err := Open(DriverSQLite, path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Close())

	s, err = Open(DriverSQLite, path, 0)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())

	_, err = Open("mysql", "x", 0)
	assert.Error(t, err)
}

func TestLoadHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertAsset(ctx, model.Asset{ID: "sol", Symbol: "SOL", Name: "Solana"}))
	seedRanks(t, s, "sol", 90, 80, 70, 60, 50, 40)

	// re-inserting a timestamp replaces the row
	require.NoError(t, s.InsertRankSnapshots(ctx, []model.RankSnapshot{{AssetID: "sol", Timestamp: day(5), Rank: 35}}))

	h, err := s.LoadHistory(ctx, "sol", 2*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "SOL", h.Asset.Symbol)
	require.Len(t, h.Snapshots, 4, "earliest snapshot plus the last three days")
	assert.Equal(t, day(0), h.Snapshots[0].Timestamp)
	assert.Equal(t, day(3), h.Snapshots[1].Timestamp)
	assert.Equal(t, 35, h.Snapshots[3].Rank)
	assert.Nil(t, h.Metadata)

	_, err = s.LoadHistory(ctx, "missing", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadHistory_BreakdownsAndMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRanks(t, s, "doge", 10, 9)

	require.NoError(t, s.InsertExchangeVolumes(ctx, []model.ExchangeVolumeBreakdown{
		{AssetID: "doge", Timestamp: day(0), Volumes: map[string]float64{"binance": 10, "okx": 5}},
		{AssetID: "doge", Timestamp: day(1), Volumes: map[string]float64{"binance": 20}},
	}))
	commit := day(-100)
	conf := 40.0
	require.NoError(t, s.UpsertMetadata(ctx, &model.AssetMetadata{
		AssetID: "doge", Symbol: "DOGE", Name: "Dogecoin",
		LastCommitAt: &commit, Exchanges: []string{"binance"}, PumpGroupConfidence: &conf,
	}))

	h, err := s.LoadHistory(ctx, "doge", 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, h.Breakdowns, 2)
	assert.Equal(t, map[string]float64{"binance": 10, "okx": 5}, h.Breakdowns[0].Volumes)
	require.NotNil(t, h.Metadata)
	assert.Equal(t, commit, *h.Metadata.LastCommitAt)
	assert.Equal(t, []string{"binance"}, h.Metadata.Exchanges)
	assert.Equal(t, 40.0, *h.Metadata.PumpGroupConfidence)
	assert.Equal(t, "Dogecoin", h.Asset.Name)

	// unknown fields stay unknown
	require.NoError(t, s.UpsertMetadata(ctx, &model.AssetMetadata{AssetID: "doge"}))
	h, err = s.LoadHistory(ctx, "doge", 30*24*time.Hour)
	require.NoError(t, err)
	assert.Nil(t, h.Metadata.LastCommitAt)
	assert.Nil(t, h.Metadata.Exchanges)
	assert.Nil(t, h.Metadata.PumpGroupConfidence)
	assert.Equal(t, "DOGE", h.Asset.Symbol, "empty symbol keeps the stored one")
}

func score(assetID string, window int, ts time.Time, rr float64) model.ScoreSnapshot {
	return model.ScoreSnapshot{
		AssetID: assetID, WindowDays: window, Timestamp: ts, RRScore: rr, BaseVelocity: -rr,
		Phase: model.PhaseMarkup, TrackingPhase: model.PhaseEarly, StartRank: 100, EndRank: 80,
	}
}

func TestRecordScores_UpsertAndOrderingGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.RecordScores(ctx, []model.ScoreSnapshot{score("eth", 7, day(2), 4), score("eth", 14, day(2), 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// same timestamp overwrites in place
	n, err = s.RecordScores(ctx, []model.ScoreSnapshot{score("eth", 7, day(2), 6)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// older than stored is skipped
	n, err = s.RecordScores(ctx, []model.ScoreSnapshot{score("eth", 7, day(1), 9)})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var count int
	require.NoError(t, s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM score_snapshots WHERE window_days = 7`))
	assert.Equal(t, 1, count)

	var rr float64
	require.NoError(t, s.db.GetContext(ctx, &rr, `SELECT rr_score FROM score_snapshots WHERE window_days = 7`))
	assert.Equal(t, 6.0, rr)
}

func TestWatchEntryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.WatchEntry(ctx, "pepe")
	assert.ErrorIs(t, err, ErrNotFound)

	e := &model.WatchListEntry{
		AssetID: "pepe", Symbol: "PEPE", Name: "Pepe",
		DetectionDate: day(0), InitialRank: 400, InitialScore: 6,
		PeakRank: 400, PeakDate: day(0), CurrentRank: 400, CurrentScore: 6,
		Status: model.WatchRisingStar, Notes: "detected", UpdatedAt: day(0),
	}
	require.NoError(t, s.RecordWatchEntry(ctx, e))

	updated := *e
	updated.CurrentRank, updated.PeakRank, updated.PeakDate = 300, 300, day(3)
	updated.InitialRank = 999 // detection fields are write-once
	updated.UpdatedAt = day(3)
	require.NoError(t, s.RecordWatchEntry(ctx, &updated))

	got, err := s.WatchEntry(ctx, "pepe")
	require.NoError(t, err)
	assert.Equal(t, 400, got.InitialRank)
	assert.Equal(t, 300, got.CurrentRank)
	assert.Equal(t, day(3), got.PeakDate)

	list, err := s.WatchList(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMarketContextAndRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestMarketContext(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.InsertMarketContext(ctx, &model.MarketContext{Timestamp: day(0), BTCDominance: 55}))
	require.NoError(t, s.InsertMarketContext(ctx, &model.MarketContext{Timestamp: day(1), BTCDominance: 38, Trend: model.TrendFalling}))
	mc, err := s.LatestMarketContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, 38.0, mc.BTCDominance)
	assert.Equal(t, model.TrendFalling, mc.Trend)

	run := &BatchRun{RunID: "r1", StartedAt: day(1), Status: RunRunning}
	require.NoError(t, s.RecordRun(ctx, run))
	run.Status, run.Scored, run.FinishedAt = RunCompleted, 12, day(1).Add(time.Minute)
	require.NoError(t, s.RecordRun(ctx, run))

	got, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.Equal(t, 12, got.Scored)
	assert.Equal(t, day(1).Add(time.Minute), got.FinishedAt)
}

func TestDashboard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRanks(t, s, "aaa", 300, 250)
	seedRanks(t, s, "bbb", 500, 450)
	seedRanks(t, s, "ccc", 50, 60)

	_, err := s.RecordScores(ctx, []model.ScoreSnapshot{
		score("aaa", 14, day(1), 3),
		score("bbb", 14, day(1), 8),
		score("aaa", 7, day(1), 9),
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordWatchEntry(ctx, &model.WatchListEntry{
		AssetID: "bbb", DetectionDate: day(1), PeakDate: day(1), UpdatedAt: day(1), Status: model.WatchRisingStar,
	}))

	rows, err := s.Dashboard(ctx, DashboardFilter{WindowDays: 14, SortBy: SortByScore})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"bbb", "aaa", "ccc"}, []string{rows[0].Asset.ID, rows[1].Asset.ID, rows[2].Asset.ID})
	assert.Equal(t, 450, rows[0].Latest.Rank)
	assert.Equal(t, model.WatchRisingStar, rows[0].WatchStatus)
	require.NotNil(t, rows[1].Score)
	assert.Equal(t, 3.0, rows[1].Score.RRScore)
	assert.Nil(t, rows[2].Score)

	rows, err = s.Dashboard(ctx, DashboardFilter{WindowDays: 14, MinRank: 100, MaxRank: 400})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "aaa", rows[0].Asset.ID)

	rows, err = s.Dashboard(ctx, DashboardFilter{WindowDays: 14, MinScore: 5})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "bbb", rows[0].Asset.ID)

	rows, err = s.Dashboard(ctx, DashboardFilter{WindowDays: 14, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "aaa", rows[0].Asset.ID)
}

func TestCoinDetails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedRanks(t, s, "ada", 40, 35, 30)
	require.NoError(t, s.InsertExchangeVolumes(ctx, []model.ExchangeVolumeBreakdown{
		{AssetID: "ada", Timestamp: day(0), Volumes: map[string]float64{"kraken": 1}},
		{AssetID: "ada", Timestamp: day(2), Volumes: map[string]float64{"binance": 3, "okx": 1}},
	}))
	_, err := s.RecordScores(ctx, []model.ScoreSnapshot{score("ada", 14, day(1), 2), score("ada", 14, day(2), 4)})
	require.NoError(t, err)

	d, err := s.CoinDetails(ctx, "ada", 14)
	require.NoError(t, err)
	assert.Equal(t, 30, d.Latest.Rank)
	require.Len(t, d.Rankings, 3)
	assert.Equal(t, 40, d.Rankings[0].Rank)
	require.Len(t, d.Scores, 2)
	assert.Equal(t, day(1), d.Scores[0].Timestamp)
	require.NotNil(t, d.Score)
	assert.Equal(t, 4.0, d.Score.RRScore)
	require.NotNil(t, d.Breakdown)
	assert.Equal(t, 4.0, d.Breakdown.Total())
	assert.Nil(t, d.Metadata)
	assert.Nil(t, d.WatchEntry)

	_, err = s.CoinDetails(ctx, "nope", 14)
	assert.ErrorIs(t, err, ErrNotFound)
}
