package main

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	handler "taskboard-backend/api"
	"taskboard-backend/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := cfg.NewLogger()

			dbCfg := handler.DatabaseConfigFrom(cfg)
			dbCfg.AutoMigrate = false
			store, err := database.NewDatabase(cmd.Context(), dbCfg)
			if err != nil {
				return err
			}
			defer store.Close()

			sqlStore, ok := store.(*database.SQLStore)
			if !ok {
				log.Info("memory store selected, nothing to migrate")
				return nil
			}
			if err := sqlStore.Migrate(cmd.Context()); err != nil {
				return errors.Wrap(err, "migrate")
			}
			log.WithField("driver", cfg.DatabaseDriver).Info("schema applied")
			return nil
		},
	}
}
