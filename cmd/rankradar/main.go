package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const version = "v1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "rankradar",
		Short:         "Rank-velocity scoring for crypto assets",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "configs/config.yaml", "Path to the YAML config file (env CONFIG_PATH)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scoring batch now",
		RunE:  runBatch,
	}
	runCmd.Flags().Bool("dry-run", false, "Score without writing snapshots or watch-list changes")
	runCmd.Flags().Bool("fresh", false, "Discard the checkpoint and rescore every asset")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the batch scheduler and the read-only API",
		RunE:  runServe,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables",
		RunE:  runMigrate,
	}

	rootCmd.AddCommand(runCmd, serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("rankradar failed")
		os.Exit(1)
	}
}
