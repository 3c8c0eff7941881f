package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/praxisbackup/internal/auth"
	"github.com/dukerupert/praxisbackup/internal/backup"
)

// runTimeout bounds a backup started over HTTP. It stays under the
// server's write timeout so the response can still be written.
const runTimeout = 14 * time.Minute

// BatchRunner runs one backup invocation.
type BatchRunner interface {
	Run(ctx context.Context) (*backup.BatchResult, error)
}

type CronHandler struct {
	runner BatchRunner
	logger *slog.Logger
}

func NewCronHandler(runner BatchRunner, logger *slog.Logger) *CronHandler {
	return &CronHandler{runner: runner, logger: logger}
}

// DailyBackup runs every due schedule and reports per-schedule results.
// Individual schedule failures still yield 200; only a failed run is a 500.
// The run outlives the caller's connection so a client that gives up early
// does not abort the exports still in flight.
func (h *CronHandler) DailyBackup(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("backup triggered", "method", auth.MethodOf(r.Context()))

	ctx, cancel := detached(r)
	defer cancel()

	result, err := h.runner.Run(ctx)
	if err != nil {
		h.logger.Error("backup run", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// detached returns a context that keeps the request's values but not its
// cancellation, bounded by runTimeout.
func detached(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), runTimeout)
}
