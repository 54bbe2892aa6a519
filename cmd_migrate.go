package main

import (
	"errors"
	"strings"

	"gitevents/internal"
	"gitevents/pkg/storage/records"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the events table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := internal.NewLogger("migrate")
		config, err := internal.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if strings.EqualFold(config.Storage.Driver, "opensearch") {
			return errors.New("migrate applies to SQL storage drivers only")
		}

		store, err := records.Open(records.Config{
			Driver: config.Storage.Driver,
			DSN:    config.Storage.DSN,
			Table:  config.Storage.Table,
		})
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Migrate(); err != nil {
			return err
		}
		logger.Infow("events table migrated", "driver", config.Storage.Driver, "table", config.Storage.Table)
		return nil
	},
}
