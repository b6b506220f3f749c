package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/coach-scheduling/internal/repository/mongo"

	"github.com/spf13/cobra"
)

var ensureIndexesCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Create the MongoDB indexes and exit",
	Long:  "Create every index the repositories rely on, including the partial unique index that prevents double booking.",
	RunE:  runEnsureIndexes,
}

func init() {
	rootCmd.AddCommand(ensureIndexesCmd)
}

func runEnsureIndexes(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.Database.Driver != "mongo" {
		return errors.New("ensure-indexes needs database.driver mongo")
	}

	client, err := mongo.ConnectDB(cfg.Database.URI, cfg.Database.Timeout)
	if err != nil {
		return fmt.Errorf("connect to MongoDB: %w", err)
	}
	defer func() {
		if err := mongo.DisconnectDB(client); err != nil {
			logger.Error().Err(err).Msg("failed to disconnect MongoDB")
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := mongo.EnsureIndexes(ctx, client.Database(cfg.Database.Name), logger); err != nil {
		return err
	}
	logger.Info().Str("database", cfg.Database.Name).Msg("indexes ensured")
	return nil
}
