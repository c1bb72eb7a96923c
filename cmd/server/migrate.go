package main

import (
	"context"
	"fmt"

	"github.com/anonto42/alumni-connect/backend/internal/repositories"
	"github.com/anonto42/alumni-connect/backend/pkg/config"
	"github.com/spf13/cobra"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := config.InitDB(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}
	defer db.CloseDB()

	return migrate(cmd.Context(), db)
}

func migrate(ctx context.Context, db *config.DB) error {
	if err := repositories.Migrate(db.Postgres.WithContext(ctx), cfg.ChangeChannel); err != nil {
		return fmt.Errorf("postgres migration failed: %w", err)
	}
	if err := repositories.EnsurePostIndexes(ctx, db.MongoDB); err != nil {
		return fmt.Errorf("mongo index creation failed: %w", err)
	}
	log.Info("Migrations completed.")
	return nil
}
