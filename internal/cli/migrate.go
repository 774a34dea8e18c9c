package cli

import (
	"context"
	"fmt"
	"time"

	mongomigration "roadquest/internal/migrations/mongo"
	"roadquest/pkg/config"

	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create collections, schema validators and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load(ServiceName + "-migrate")
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.SetMongo(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			defer cfg.GracefulShutdown(context.Background())

			db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
			if err := mongomigration.RunMigration(ctx, db, cfg.Log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall migration deadline")
	return cmd
}
