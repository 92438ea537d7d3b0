package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"RankRadar/internal/calculator"
	"RankRadar/internal/checkpoint"
	"RankRadar/internal/metrics"
	"RankRadar/internal/model"
	"RankRadar/internal/recorder"
	"RankRadar/internal/strategy"
	"RankRadar/internal/watchlist"
)

// ErrStorageUnavailable wraps store and breaker failures.
var ErrStorageUnavailable = errors.New("pipeline: storage unavailable")

// Skip reasons, used as metric labels.
const (
	SkipStorage    = "storage"
	SkipNoData     = "no_data"
	SkipCheckpoint = "checkpoint"
	SkipWrite      = "write"
)

// MarketCache caches the batch-wide market context.
type MarketCache interface {
	MarketContext(ctx context.Context) (*model.MarketContext, bool, error)
	SetMarketContext(ctx context.Context, mc *model.MarketContext, ttl time.Duration) error
	InvalidateResponses(ctx context.Context) (int, error)
}

// Config controls one pipeline.
type Config struct {
	Windows          []int
	PrimaryWindow    int
	Workers          int
	MarketContextTTL time.Duration
	BreakerFailures  uint32
	BreakerTimeout   time.Duration
}

// Options wires a pipeline. Cache and Checkpoint are optional.
type Options struct {
	Source     recorder.Source
	Recorder   recorder.Recorder
	Cache      MarketCache
	Checkpoint *checkpoint.Manager
	Engine     *strategy.Engine
	Watch      watchlist.Params
	Metrics    *metrics.Registry
	Config     Config
}

// RunSummary describes one completed or cancelled batch.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Scored         int           `json:"scored"`
	Skipped        int           `json:"skipped"`
	WatchMutations int           `json:"watch_mutations"`
	ScoresWritten  int           `json:"scores_written"`
	Multiplier     float64       `json:"market_context_multiplier"`
	Duration       time.Duration `json:"duration"`
}

// Pipeline runs batch scoring over every tracked asset.
type Pipeline struct {
	source     recorder.Source
	recorder   recorder.Recorder
	cache      MarketCache
	checkpoint *checkpoint.Manager
	engine     *strategy.Engine
	watch      watchlist.Params
	metrics    *metrics.Registry
	cfg        Config
	breaker    *gobreaker.CircuitBreaker
	lookback   time.Duration
}

// New creates a Pipeline, filling unset options with defaults.
func New(opts Options) *Pipeline {
	cfg := opts.Config
	if len(cfg.Windows) == 0 {
		cfg.Windows = []int{7, 14, 30}
	}
	if cfg.PrimaryWindow <= 0 {
		cfg.PrimaryWindow = opts.Watch.PrimaryWindow
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MarketContextTTL <= 0 {
		cfg.MarketContextTTL = 10 * time.Minute
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if opts.Engine == nil {
		opts.Engine = strategy.NewEngine(strategy.DefaultParams())
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Checkpoint == nil {
		opts.Checkpoint, _ = checkpoint.NewManager("")
	}

	maxWindow := 0
	for _, w := range cfg.Windows {
		if w > maxWindow {
			maxWindow = w
		}
	}

	p := &Pipeline{
		source:     opts.Source,
		recorder:   opts.Recorder,
		cache:      opts.Cache,
		checkpoint: opts.Checkpoint,
		engine:     opts.Engine,
		watch:      opts.Watch,
		metrics:    opts.Metrics,
		cfg:        cfg,
		lookback:   time.Duration(maxWindow+1) * calculator.Day,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store-read",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, recorder.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.metrics.BreakerState.Set(float64(to))
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})
	return p
}

type counters struct {
	scored, skipped, mutations, written atomic.Int64
}

// Run scores every asset once. Per-asset storage failures skip that asset and never
// fail the batch. On cancellation the partial summary is returned with ctx.Err().
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	run := &recorder.BatchRun{RunID: runID, StartedAt: start.UTC(), Status: recorder.RunRunning}
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		logger.Warn().Err(err).Msg("failed to record batch start")
	}

	mult := p.engine.MarketMultiplier(p.marketContext(ctx))
	p.metrics.MarketMultiple.Set(mult)

	assets, err := p.source.ListAssets(ctx)
	if err != nil {
		err = fmt.Errorf("%w: list assets: %w", ErrStorageUnavailable, err)
		p.finish(run, &RunSummary{RunID: runID, Multiplier: mult}, start, err)
		return nil, err
	}
	p.checkpoint.Begin(runID)
	logger.Info().Int("assets", len(assets)).Float64("multiplier", mult).Ints("windows", p.cfg.Windows).Msg("batch started")

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, a := range assets {
		if ctx.Err() != nil {
			break
		}
		a := a
		g.Go(func() error {
			p.scoreAsset(gctx, a, mult, &c)
			return nil
		})
	}
	_ = g.Wait()

	summary := &RunSummary{
		RunID:          runID,
		Scored:         int(c.scored.Load()),
		Skipped:        int(c.skipped.Load()),
		WatchMutations: int(c.mutations.Load()),
		ScoresWritten:  int(c.written.Load()),
		Multiplier:     mult,
		Duration:       time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		p.finish(run, summary, start, err)
		logger.Warn().Int("scored", summary.Scored).Msg("batch cancelled")
		return summary, err
	}

	if p.cache != nil && summary.ScoresWritten > 0 {
		if n, err := p.cache.InvalidateResponses(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to invalidate response cache")
		} else {
			logger.Debug().Int("keys", n).Msg("response cache invalidated")
		}
	}

	p.finish(run, summary, start, nil)
	logger.Info().
		Int("scored", summary.Scored).
		Int("skipped", summary.Skipped).
		Int("watch_mutations", summary.WatchMutations).
		Int("written", summary.ScoresWritten).
		Dur("duration", summary.Duration).
		Msg("batch finished")
	return summary, nil
}

func (p *Pipeline) finish(run *recorder.BatchRun, s *RunSummary, start time.Time, err error) {
	run.FinishedAt = time.Now().UTC()
	run.Scored, run.Skipped, run.WatchMutations = s.Scored, s.Skipped, s.WatchMutations
	switch {
	case err == nil:
		run.Status = recorder.RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		run.Status, run.Error = recorder.RunCancelled, err.Error()
	default:
		run.Status, run.Error = recorder.RunFailed, err.Error()
	}
	p.metrics.BatchRuns.WithLabelValues(run.Status).Inc()
	p.metrics.BatchDuration.Observe(time.Since(start).Seconds())

	// the run context may already be cancelled; the audit row is still written
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.recorder.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("failed to record batch result")
	}
}

// marketContext loads the global context from the cache, then the store. A missing
// context is neutral.
func (p *Pipeline) marketContext(ctx context.Context) *model.MarketContext {
	if p.cache != nil {
		mc, ok, err := p.cache.MarketContext(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("market context cache read failed")
		}
		p.metrics.CacheResult("market_context", ok)
		if ok {
			return mc
		}
	}

	mc, err := p.source.LatestMarketContext(ctx)
	if errors.Is(err, recorder.ErrNotFound) {
		log.Debug().Msg("no market context stored, using neutral multiplier")
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("market context unavailable, using neutral multiplier")
		return nil
	}

	if p.cache != nil {
		if err := p.cache.SetMarketContext(ctx, mc, p.cfg.MarketContextTTL); err != nil {
			log.Warn().Err(err).Msg("market context cache write failed")
		}
	}
	return mc
}

func (p *Pipeline) loadHistory(ctx context.Context, assetID string) (*model.AssetHistory, error) {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.source.LoadHistory(ctx, assetID, p.lookback)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return res.(*model.AssetHistory), nil
}

func (p *Pipeline) skip(c *counters, reason string) {
	c.skipped.Add(1)
	p.metrics.AssetsSkipped.WithLabelValues(reason).Inc()
}

func (p *Pipeline) scoreAsset(ctx context.Context, a model.Asset, mult float64, c *counters) {
	if ctx.Err() != nil {
		return
	}
	logger := log.With().Str("asset", a.ID).Logger()

	h, err := p.loadHistory(ctx, a.ID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.skip(c, SkipStorage)
		logger.Warn().Err(err).Msg("skipping asset")
		return
	}
	latest, ok := h.Latest()
	if !ok {
		p.skip(c, SkipNoData)
		logger.Debug().Msg("no rank snapshots, skipping")
		return
	}
	asOf := latest.Timestamp
	if p.checkpoint.IsDone(a.ID, asOf) {
		p.skip(c, SkipCheckpoint)
		logger.Debug().Time("as_of", asOf).Msg("already scored at this snapshot")
		return
	}

	// an asset that started scoring finishes its writes even if the batch is cancelled
	wctx := context.WithoutCancel(ctx)

	snaps := make([]model.ScoreSnapshot, 0, len(p.cfg.Windows))
	var primary *model.ScoreSnapshot
	for _, w := range p.cfg.Windows {
		eval := p.engine.Evaluate(h, w, asOf, mult)
		snaps = append(snaps, eval.Snapshot)
		if w == p.cfg.PrimaryWindow {
			primary = &snaps[len(snaps)-1]
		}
		if eval.Breakdown.Velocity.Insufficient {
			logger.Debug().Int("window", w).Msg("insufficient history in window")
		}
	}

	written, err := p.recorder.RecordScores(wctx, snaps)
	if err != nil {
		p.skip(c, SkipWrite)
		logger.Warn().Err(err).Msg("failed to write scores, skipping asset")
		return
	}
	c.written.Add(int64(written))
	p.metrics.ScoresWritten.Add(float64(written))

	if primary != nil {
		p.updateWatch(wctx, h.Asset, *primary, c)
	}

	if err := p.checkpoint.MarkDone(a.ID, asOf); err != nil {
		logger.Warn().Err(err).Msg("failed to save checkpoint")
	}
	c.scored.Add(1)
	p.metrics.AssetsScored.Inc()
}

func (p *Pipeline) updateWatch(ctx context.Context, asset model.Asset, primary model.ScoreSnapshot, c *counters) {
	logger := log.With().Str("asset", asset.ID).Int("window", primary.WindowDays).Logger()

	entry, err := p.source.WatchEntry(ctx, asset.ID)
	if err != nil && !errors.Is(err, recorder.ErrNotFound) {
		logger.Warn().Err(err).Msg("watch entry unavailable, skipping transition")
		return
	}

	next, changed := watchlist.Transition(entry, watchlist.Input{
		Asset:     asset,
		Score:     primary,
		Threshold: p.engine.Threshold(primary.TrackingPhase),
	}, p.watch)
	if !changed {
		return
	}
	if err := p.recorder.RecordWatchEntry(ctx, next); err != nil {
		logger.Warn().Err(err).Msg("failed to save watch entry")
		return
	}
	c.mutations.Add(1)
	p.metrics.WatchMutations.WithLabelValues(string(next.Status)).Inc()

	if entry == nil || entry.Status != next.Status {
		logger.Info().Str("status", string(next.Status)).Float64("rr_score", primary.RRScore).Int("rank", primary.EndRank).Msg("watch list transition")
	}
}
