// Package server wires the backup pipeline behind the HTTP API.
package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/dukerupert/praxisbackup/internal/catalog"
	"github.com/dukerupert/praxisbackup/internal/config"
	"github.com/dukerupert/praxisbackup/internal/email"
	"github.com/dukerupert/praxisbackup/internal/handler"
	"github.com/dukerupert/praxisbackup/internal/middleware"
	"github.com/dukerupert/praxisbackup/internal/store"
	ws "github.com/dukerupert/praxisbackup/internal/websocket"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	triggerBurst  = 5
	triggerWindow = time.Minute
)

type Server struct {
	db          *sql.DB
	cfg         *config.Config
	hub         *ws.Hub
	resolver    *backup.Resolver
	runner      *backup.Runner
	cronH       *handler.CronHandler
	backupH     *handler.BackupHandler
	scheduleH   *handler.ScheduleHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

// New builds the pipeline over db. objects receives uploaded artifacts.
func New(db *sql.DB, cfg *config.Config, objects backup.ArtifactStore, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	scheduleStore := store.NewScheduleStore(db)
	practiceStore := store.NewPracticeStore(db)
	backupStore := store.NewBackupStore(db)

	backupLogger := logger.With("component", "backup")

	resolver := backup.NewResolver(scheduleStore, practiceStore, backupLogger)
	exporter := backup.NewExporter(catalog.Default(), store.NewTableReader(db), backupLogger)
	verifier := backup.NewVerifier(&http.Client{Timeout: cfg.VerifyTimeout}, backupLogger)
	ledger := backup.NewLedger(backupStore, scheduleStore, objects, backupLogger)

	callback := hub.Publish
	if cfg.Alerts.Enabled() {
		alerter := email.NewRunAlerter(email.NewClient(cfg.Alerts.PostmarkToken, cfg.Alerts.From), cfg.Alerts.To, logger)
		callback = func(e backup.Event) {
			hub.Publish(e)
			alerter.OnEvent(e)
		}
	}
	runner := backup.NewRunner(resolver, exporter, objects, verifier, ledger, callback, backupLogger)
	if cfg.Location != nil {
		runner.SetLocation(cfg.Location)
	}

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		resolver:    resolver,
		runner:      runner,
		cronH:       handler.NewCronHandler(runner, logger.With("component", "cron")),
		backupH:     handler.NewBackupHandler(backupStore, runner, verifier, logger.With("component", "backups")),
		scheduleH:   handler.NewScheduleHandler(scheduleStore, resolver, cfg.Location, logger.With("component", "schedules")),
		rateLimiter: middleware.NewRateLimiter(triggerBurst, triggerWindow),
		logger:      logger,
	}
}

// Runner returns the backup runner for the CLI and the scheduler.
func (s *Server) Runner() *backup.Runner {
	return s.runner
}

// Resolver returns the schedule resolver.
func (s *Server) Resolver() *backup.Resolver {
	return s.resolver
}

// RateLimiter returns the trigger rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", promhttp.Handler())

	// Operator routes share the cron secret guard.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	guard := middleware.RequireCronSecret(s.cfg.CronSecret, s.cfg.IsProduction())
	outerMux.Handle("/api/", guard(protectedMux))
	outerMux.Handle("GET /ws", guard(ws.HandleWebSocket(s.hub, nil)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	trigger := s.rateLimited(s.cronH.DailyBackup)
	mux.Handle("GET /api/cron/daily-backup", trigger)
	mux.Handle("POST /api/cron/daily-backup", trigger)

	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.Handle("POST /api/backups", s.rateLimited(s.backupH.Create))
	mux.HandleFunc("POST /api/backups/verify", s.backupH.VerifyAll)
	mux.HandleFunc("GET /api/backups/{id}", s.backupH.Get)
	mux.HandleFunc("POST /api/backups/{id}/verify", s.backupH.Verify)

	mux.HandleFunc("GET /api/backup-schedules", s.scheduleH.List)
	mux.HandleFunc("GET /api/backup-schedules/diagnose", s.scheduleH.Diagnose)
	mux.HandleFunc("POST /api/backup-schedules/repair", s.scheduleH.Repair)
	mux.HandleFunc("PATCH /api/backup-schedules/{id}", s.scheduleH.Update)
	mux.HandleFunc("DELETE /api/backup-schedules/{id}", s.scheduleH.Delete)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if err := s.db.PingContext(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body = map[string]string{"status": "unavailable", "error": "database unreachable"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP)(h)
}
