package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mcdev12/quizhub/go/internal/catalog"
	"github.com/mcdev12/quizhub/go/internal/dbconfig"
)

func newImportCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import-games",
		Short: "Copy the games of --catalog-dir into the --catalog-dsn database.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return importGames(cmd.Context(), cfg)
		},
	}
}

func importGames(ctx context.Context, cfg *Config) error {
	if cfg.catalogDSN == "" {
		return errors.New("--catalog-dsn is required")
	}

	files, err := catalog.NewFileStore(cfg.catalogDir)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	summaries, err := files.ListGames(ctx)
	if err != nil {
		return err
	}

	pool, err := setupPool(ctx, cfg.catalogDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	store := catalog.NewPostgresStore(pool)

	var errs error
	imported := 0
	for _, summary := range summaries {
		game, err := files.GetGame(ctx, summary.ID)
		if err == nil {
			err = store.SaveGame(ctx, game)
		}
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("game %s: %w", summary.ID, err))
			continue
		}
		imported++
		log.Info().Str("game_id", game.ID).Str("title", game.Title).Msg("game imported")
	}

	log.Info().Int("imported", imported).Int("total", len(summaries)).Msg("import finished")
	return errs
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog and history tables in the DB_* database.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := setupDatabase(cmd.Context(), dbconfig.NewConfigFromEnv())
			if err != nil {
				return err
			}
			defer db.Close()

			if _, err := db.ExecContext(cmd.Context(), dbconfig.Schema); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
			log.Info().Msg("schema applied")
			return nil
		},
	}
}
