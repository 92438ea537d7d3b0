package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runBatch(cmd *cobra.Command, _ []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	fresh, _ := cmd.Flags().GetBool("fresh")

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	cp, err := a.checkpoint(dryRun)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	if fresh {
		if err := cp.Reset(); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := a.pipeline(dryRun, cp).Run(ctx)
	if errors.Is(err, context.Canceled) && summary != nil {
		log.Warn().Str("run_id", summary.RunID).Int("scored", summary.Scored).Msg("batch interrupted, checkpoint kept for resume")
		return err
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("run_id", summary.RunID).
		Bool("dry_run", dryRun).
		Int("scored", summary.Scored).
		Int("skipped", summary.Skipped).
		Int("watch_mutations", summary.WatchMutations).
		Int("scores_written", summary.ScoresWritten).
		Float64("multiplier", summary.Multiplier).
		Dur("duration", summary.Duration).
		Msg("batch finished")
	return nil
}
