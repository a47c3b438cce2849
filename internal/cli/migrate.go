package cli

import (
	"context"
	"database/sql"
	"fmt"

	"trivia-match/internal/config"
	"trivia-match/internal/infra/file"
	pgbank "trivia-match/internal/infra/postgres"
	pgmigrations "trivia-match/internal/infra/postgres/migrations"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations and optionally seeds a bank.
func NewMigrateCmd() *cobra.Command {
	var seeds []string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(cmd.Context(), cfg); err != nil {
				return err
			}
			return seedBanks(cmd.Context(), cfg, seeds)
		},
	}
	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "question bank JSON files to upsert after migrating")
	return cmd
}

func openDB(cfg config.Config) (*bun.DB, error) {
	if cfg.Postgres.URL == "" {
		return nil, fmt.Errorf("postgres url not configured")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info().Msg("no new migrations")
		return nil
	}
	log.Info().Str("group", group.String()).Msg("migrations applied")
	return nil
}

func seedBanks(ctx context.Context, cfg config.Config, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, path := range paths {
		bank, err := file.ReadBank(path)
		if err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		if err := pgbank.SaveBank(ctx, db, bank); err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
		log.Info().Str("bank_id", bank.ID).Int("questions", len(bank.Questions)).Msg("bank seeded")
	}
	return nil
}
