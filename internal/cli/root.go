// Package cli implements the praxisbackup command tree.
package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/dukerupert/praxisbackup/internal/config"
	"github.com/dukerupert/praxisbackup/internal/database"
	"github.com/dukerupert/praxisbackup/internal/logging"
	"github.com/dukerupert/praxisbackup/internal/server"
)

// RootCmd returns the praxisbackup root command.
func RootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "praxisbackup",
		Short: "Scheduled tenant backups with verification",
		Long: `praxisbackup exports practice data on a schedule, uploads each snapshot
to object storage, verifies the upload, and keeps a retention-bounded ledger.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(ServeCmd(&configPath))
	rootCmd.AddCommand(RunCmd(&configPath))
	rootCmd.AddCommand(SchedulesCmd(&configPath))

	return rootCmd
}

// app is the wired process shared by the subcommands.
type app struct {
	cfg     *config.Config
	db      *sql.DB
	objects backup.ArtifactStore
	server  *server.Server
	logger  *slog.Logger
}

// loadApp reads an optional .env file into the environment, then loads
// config, logging, the database, and the server.
func loadApp(configPath string) (*app, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s3cfg := cfg.S3Config()
	if !s3cfg.Enabled() {
		logger.Warn("object storage not configured, uploads will fail")
	}
	objects := backup.NewArtifactStore(s3cfg)

	return &app{
		cfg:     cfg,
		db:      db,
		objects: objects,
		server:  server.New(db, cfg, objects, logger),
		logger:  logger,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
