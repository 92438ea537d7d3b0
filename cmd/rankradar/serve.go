package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"RankRadar/internal/api"
	"RankRadar/internal/scheduler"
)

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cp, err := a.checkpoint(false)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(ctx, a.pipeline(false, cp))
	if err := sched.RegisterAll(a.cfg.Schedule.BatchCron); err != nil {
		return err
	}
	sched.Start()

	apiOpts := api.Options{
		Query:         a.store,
		Metrics:       a.metrics,
		CacheTTL:      a.cfg.Redis.ResponseTTL,
		Windows:       a.cfg.Scoring.Windows,
		DefaultWindow: a.cfg.Scoring.PrimaryWindow,
		Watch:         a.cfg.Watch,
	}
	if a.cache != nil {
		apiOpts.Cache = a.cache
	}
	srv := api.NewServer(apiOpts)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(a.cfg.API.Listen) }()

	if a.cfg.Schedule.RunOnStart {
		log.Info().Msg("RUN_ON_START enabled, executing batch now")
		go sched.RunNow()
	}

	log.Info().Str("cron", a.cfg.Schedule.BatchCron).Msg("rankradar is running")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, stopping")
	case err = <-errCh:
		log.Error().Err(err).Msg("api server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("api shutdown")
	}
	stop()
	sched.Stop()
	log.Info().Msg("rankradar stopped")
	return err
}
