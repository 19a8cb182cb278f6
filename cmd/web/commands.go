package main

import (
	"errors"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"stealthbuddy/internal/auth"
	"stealthbuddy/internal/billing"
	"stealthbuddy/internal/config"
	"stealthbuddy/internal/platform/database"
	"stealthbuddy/internal/platform/logging"
	"stealthbuddy/internal/platform/migrate"
)

var errNoDatabase = errors.New("DATABASE_URL is required for this command")

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the session store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *sqlx.DB, logger *slog.Logger) error {
				return migrate.Apply(cmd.Context(), db, logger)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *sqlx.DB, logger *slog.Logger) error {
				return migrate.Rollback(cmd.Context(), db, logger)
			})
		},
	})
	return cmd
}

func newSessionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browser session maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions from the postgres store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(db *sqlx.DB, logger *slog.Logger) error {
				service := auth.NewService(auth.NewPostgresRepository(db), nil, auth.WithLogger(logger))
				removed, err := service.CleanupExpiredSessions(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", removed)
				return nil
			})
		},
	})
	return cmd
}

func newPlansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Print the price list",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := billing.DefaultCatalog()
			if err != nil {
				return err
			}
			return printPlans(cmd, catalog)
		},
	}
}

func printPlans(cmd *cobra.Command, catalog *billing.Catalog) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAMOUNT\tCREDITS\tKIND")
	for _, p := range catalog.Plans() {
		fmt.Fprintf(tw, "%s\t%s\t$%d\t%s\t%s\n", p.ID, p.Name, p.Amount, p.Credits, p.Kind)
	}
	return tw.Flush()
}

// withDatabase loads config, opens postgres and runs fn against it.
func withDatabase(cmd *cobra.Command, fn func(db *sqlx.DB, logger *slog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errNoDatabase
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	db, err := database.NewPostgres(cmd.Context(), cfg.DatabaseURL, database.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	return fn(db, logger)
}
