// Package migrate implements the migrate sub-command.
package migrate

import (
	"context"
	"errors"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // support file scheme for golang_migrate
	"github.com/spf13/cobra"

	"github.com/oasisprotocol/blockview/cmd/common"
	"github.com/oasisprotocol/blockview/config"
	"github.com/oasisprotocol/blockview/log"
)

const moduleName = "migrate"

var (
	// Path to the configuration file.
	configFile string

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Run:   runMigrate,
	}
)

func runMigrate(cmd *cobra.Command, args []string) {
	cfg := common.LoadConfig(configFile)
	logger := common.RootLogger().WithModule(moduleName)

	if cfg.Server == nil || cfg.Server.Storage == nil {
		logger.Error("storage config not provided")
		os.Exit(1)
	}
	if err := cfg.Server.Storage.Validate(true /* requireMigrations */); err != nil {
		logger.Error("invalid storage config", "error", err)
		os.Exit(1)
	}
	if err := Run(cmd.Context(), cfg.Server.Storage, logger); err != nil {
		os.Exit(1)
	}
}

// Run wipes the storage if configured to, then brings the schema up to
// date.
func Run(ctx context.Context, cfg *config.StorageConfig, logger *log.Logger) error {
	if cfg.WipeStorage {
		logger.Warn("wiping storage")
		if err := wipeStorage(ctx, cfg, logger); err != nil {
			logger.Error("failed to wipe storage", "error", err)
			return err
		}
		logger.Info("storage wiped")
	}

	m, err := migrate.New(
		cfg.Migrations,
		cfg.Endpoint,
	)
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("failed to close migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return err
	default:
		logger.Info("migrations completed")
	}
	return nil
}

func wipeStorage(ctx context.Context, cfg *config.StorageConfig, logger *log.Logger) error {
	storage, err := common.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	return storage.Wipe(ctx)
}

// Register registers the migrate sub-command.
func Register(parentCmd *cobra.Command) {
	migrateCmd.Flags().StringVar(&configFile, "config", "./config/local.yml", "path to the config.yml file")
	parentCmd.AddCommand(migrateCmd)
}
