package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/dukerupert/praxisbackup/internal/backup"
)

// The trigger runs the whole batch inside the request.
const triggerWriteTimeout = 15 * time.Minute

// ServeCmd returns the serve command.
func ServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the backup trigger and operator API",
		Long: `Start the HTTP API. Backups run when /api/cron/daily-backup is called;
set run_interval to also run them from an in-process ticker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			httpSrv := &http.Server{
				Addr:         ":" + a.cfg.Port,
				Handler:      a.server.Router(),
				ReadTimeout:  5 * time.Second,
				WriteTimeout: triggerWriteTimeout,
				IdleTimeout:  120 * time.Second,
			}

			var extra []suture.Service
			if a.cfg.RunInterval > 0 {
				extra = append(extra, backup.NewScheduler(a.server.Runner(), a.cfg.RunInterval, a.logger))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
			defer stop()

			a.logger.Info("praxisbackup listening", "addr", httpSrv.Addr, "environment", a.cfg.Environment,
				"run_interval", a.cfg.RunInterval)

			err = a.server.Supervisor(httpSrv, extra...).Serve(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info("shut down")
			return nil
		},
	}
}
