package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"advisory/api/internal/advisory"
	"advisory/api/internal/authpw"
	"advisory/api/internal/config"
	"advisory/api/internal/logging"
	"advisory/api/internal/rbac"
	"advisory/api/internal/search"
	"advisory/api/internal/store"
)

var (
	cfg    config.Config
	logger *slog.Logger

	seedEmail    string
	seedPassword string
	seedName     string

	numberCategory string
	numberYear     int

	rootCmd = &cobra.Command{
		Use:           "advisoryctl",
		Short:         "Maintenance tasks for the advisory API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			logger = logging.New(cfg.LogLevel, "text")
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE:  runMigrateUp,
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration",
		RunE:  runMigrateDown,
	}

	seedResponderCmd = &cobra.Command{
		Use:   "seed-responder",
		Short: "Create the initial penjawab account unless the email already exists",
		RunE:  runSeedResponder,
	}

	nextNumberCmd = &cobra.Command{
		Use:   "next-number",
		Short: "Preview the next registration number for a category",
		RunE:  runNextNumber,
	}

	purgeSessionsCmd = &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired session rows from Postgres",
		RunE:  runPurgeSessions,
	}

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Push every question to Meilisearch",
		RunE:  runReindex,
	}
)

func init() {
	seedResponderCmd.Flags().StringVar(&seedEmail, "email", "admin@advisory.com", "account email")
	seedResponderCmd.Flags().StringVar(&seedPassword, "password", "admin123", "account password")
	seedResponderCmd.Flags().StringVar(&seedName, "name", "Admin Penjawab", "display name")

	nextNumberCmd.Flags().StringVar(&numberCategory, "category", "", "category code, 01 to 19")
	nextNumberCmd.Flags().IntVar(&numberYear, "year", 0, "year, defaults to the current year")
	_ = nextNumberCmd.MarkFlagRequired("category")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd, seedResponderCmd, nextNumberCmd, purgeSessionsCmd, reindexCmd)
}

func openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db.DB, cfg.MigrationsDir); err != nil {
		return err
	}
	logger.Info("migrations applied", "dir", cfg.MigrationsDir)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.RollbackMigrations(ctx, db.DB, cfg.MigrationsDir); err != nil {
		return err
	}
	logger.Info("migrations rolled back", "dir", cfg.MigrationsDir)
	return nil
}

func runSeedResponder(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	users := authpw.NewService(store.NewPostgresStore(db, logger))
	user, created, err := users.EnsureUser(ctx, authpw.RegisterRequest{
		Email:    seedEmail,
		Password: seedPassword,
		Name:     seedName,
		Role:     rbac.RolePenjawab,
	})
	if err != nil {
		return fmt.Errorf("seed responder: %w", err)
	}
	if !created {
		logger.Info("responder already exists", "email", user.Email, "role", user.Role)
		return nil
	}
	logger.Info("responder created", "email", user.Email, "id", user.ID)
	return nil
}

func runNextNumber(cmd *cobra.Command, _ []string) error {
	category := strings.TrimSpace(numberCategory)
	if !advisory.IsCategory(category) {
		return fmt.Errorf("unknown category %q", category)
	}
	year := numberYear
	if year == 0 {
		year = time.Now().Year()
	}

	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	number, err := store.NewPostgresStore(db, logger).PeekRegistrationNumber(ctx, category, year)
	if err != nil {
		logger.Warn("counter unavailable, showing fallback", "error", err)
		number = advisory.FallbackRegistrationNumber(category, year)
	}
	fmt.Fprintln(cmd.OutOrStdout(), number.String())
	return nil
}

// runPurgeSessions only keeps the table small; lookups already reject
// expired rows.
func runPurgeSessions(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	removed, err := store.NewPostgresStore(db, logger).PurgeExpiredSessions(ctx, time.Now())
	if err != nil {
		return err
	}
	logger.Info("expired sessions purged", "count", removed)
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	if strings.TrimSpace(cfg.MeiliURL) == "" {
		return fmt.Errorf("MEILI_URL is not set")
	}
	ctx := cmd.Context()
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	defer meili.Close()
	if !meili.Healthy() {
		return fmt.Errorf("meilisearch at %s is not reachable", cfg.MeiliURL)
	}
	count, err := search.NewService(meili, store.NewPostgresStore(db, logger), logger).ReindexAll(ctx)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	logger.Info("questions reindexed", "count", count)
	return nil
}
