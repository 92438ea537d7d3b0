package recorder

import (
	"context"
	"errors"
	"time"

	"RankRadar/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("recorder: not found")

// Source provides the read side the scoring pipeline needs.
type Source interface {
	ListAssets(ctx context.Context) ([]model.Asset, error)
	// LoadHistory returns snapshots within lookback of the asset's latest snapshot,
	// preceded by the asset's earliest snapshot when that one is older.
	LoadHistory(ctx context.Context, assetID string, lookback time.Duration) (*model.AssetHistory, error)
	LatestMarketContext(ctx context.Context) (*model.MarketContext, error)
	WatchEntry(ctx context.Context, assetID string) (*model.WatchListEntry, error)
}

// Recorder persists pipeline output.
type Recorder interface {
	// RecordScores writes snapshots and returns how many were written. Snapshots older
	// than the latest stored one for the same asset and window are skipped.
	RecordScores(ctx context.Context, snaps []model.ScoreSnapshot) (int, error)
	RecordWatchEntry(ctx context.Context, e *model.WatchListEntry) error
	RecordRun(ctx context.Context, run *BatchRun) error
	Close() error
}

// Query serves the read-only API.
type Query interface {
	Dashboard(ctx context.Context, f DashboardFilter) ([]DashboardRow, error)
	CoinDetails(ctx context.Context, assetID string, windowDays int) (*CoinDetails, error)
	WatchList(ctx context.Context) ([]model.WatchListEntry, error)
	LatestMarketContext(ctx context.Context) (*model.MarketContext, error)
	LatestRun(ctx context.Context) (*BatchRun, error)
	Ping(ctx context.Context) error
}

// Batch run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// BatchRun is the audit row of one pipeline run.
type BatchRun struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	Scored         int       `json:"scored"`
	Skipped        int       `json:"skipped"`
	WatchMutations int       `json:"watch_mutations"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

// Dashboard sort orders.
const (
	SortByScore    = "score"
	SortByVelocity = "velocity"
)

// DashboardFilter selects and pages dashboard rows.
type DashboardFilter struct {
	WindowDays int
	MinRank    int
	MaxRank    int
	MinScore   float64
	Limit      int
	Offset     int
	SortBy     string
}

// DashboardRow is one asset with its latest market data and, when present, its
// latest score for the requested window.
type DashboardRow struct {
	Asset       model.Asset
	Latest      model.RankSnapshot
	Score       *model.ScoreSnapshot
	WatchStatus model.WatchStatus
}

// CoinDetails aggregates everything the coin page shows.
type CoinDetails struct {
	Asset      model.Asset
	Latest     model.RankSnapshot
	Score      *model.ScoreSnapshot
	Rankings   []model.RankSnapshot
	Scores     []model.ScoreSnapshot
	Metadata   *model.AssetMetadata
	Breakdown  *model.ExchangeVolumeBreakdown
	WatchEntry *model.WatchListEntry
}
