package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"RankRadar/internal/cache"
	"RankRadar/internal/checkpoint"
	"RankRadar/internal/config"
	"RankRadar/internal/logging"
	"RankRadar/internal/metrics"
	"RankRadar/internal/pipeline"
	"RankRadar/internal/recorder"
	"RankRadar/internal/strategy"
)

// app holds the shared wiring of every subcommand.
type app struct {
	cfg     *config.Config
	store   *recorder.SQLStore
	cache   *cache.RedisCache
	metrics *metrics.Registry
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if v := os.Getenv("CONFIG_PATH"); v != "" && !cmd.Flags().Changed("config") {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == recorder.DriverSQLite {
		if err := ensureDir(cfg.Database.DSN); err != nil {
			return nil, err
		}
	}
	store, err := recorder.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &app{cfg: cfg, store: store, metrics: metrics.New()}

	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, caching disabled")
		} else {
			a.cache = rc
		}
	}
	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("close store")
	}
}

func (a *app) pipeline(dryRun bool, cp *checkpoint.Manager) *pipeline.Pipeline {
	var rec recorder.Recorder = a.store
	if dryRun {
		rec = recorder.NewNoopRecorder()
	}
	opts := pipeline.Options{
		Source:     a.store,
		Recorder:   rec,
		Checkpoint: cp,
		Engine:     strategy.NewEngine(a.cfg.Strategy),
		Watch:      a.cfg.Watch,
		Metrics:    a.metrics,
		Config: pipeline.Config{
			Windows:          a.cfg.Scoring.Windows,
			PrimaryWindow:    a.cfg.Scoring.PrimaryWindow,
			Workers:          a.cfg.Scoring.Workers,
			MarketContextTTL: a.cfg.Redis.MarketContextTTL,
			BreakerFailures:  a.cfg.Scoring.BreakerFailures,
			BreakerTimeout:   a.cfg.Scoring.BreakerTimeout,
		},
	}
	if a.cache != nil {
		opts.Cache = a.cache
	}
	return pipeline.New(opts)
}

// checkpoint opens the file-backed checkpoint; dry runs keep it in memory.
func (a *app) checkpoint(dryRun bool) (*checkpoint.Manager, error) {
	if dryRun {
		return checkpoint.NewManager("")
	}
	if err := ensureDir(a.cfg.Scoring.CheckpointFile); err != nil {
		return nil, err
	}
	return checkpoint.NewManager(a.cfg.Scoring.CheckpointFile)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
