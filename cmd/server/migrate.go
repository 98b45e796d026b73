package main

import (
	"github.com/spf13/cobra"

	"crm/internal/app"
	"crm/internal/config"
	"crm/internal/logger"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.New(cfg.Environment)
			return app.Migrate(cfg.Database.URL(), down, log)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll every migration back instead of applying them")
	return cmd
}
