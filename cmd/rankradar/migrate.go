package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runMigrate opens the store, which applies the idempotent schema.
func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.store.Migrate(cmd.Context()); err != nil {
		return err
	}
	log.Info().Str("driver", a.cfg.Database.Driver).Msg("schema up to date")
	return nil
}
