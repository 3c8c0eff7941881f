package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/dukerupert/praxisbackup/internal/store"
	"github.com/goccy/go-json"
)

const (
	maxListLimit     = 500
	defaultVerifyAll = 50
)

// ArtifactVerifier re-checks a stored artifact.
type ArtifactVerifier interface {
	Verify(ctx context.Context, url string, expectedTables []string, expectedCounts map[string]int) model.VerificationReport
}

// ManualRunner takes an on-demand backup outside any schedule.
type ManualRunner interface {
	RunManual(ctx context.Context, practiceID *string, scope model.BackupScope) (*backup.ScheduleResult, error)
}

type BackupHandler struct {
	backups  *store.BackupStore
	runner   ManualRunner
	verifier ArtifactVerifier
	logger   *slog.Logger
}

func NewBackupHandler(backups *store.BackupStore, runner ManualRunner, verifier ArtifactVerifier, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: backups, runner: runner, verifier: verifier, logger: logger}
}

type createBackupRequest struct {
	PracticeID  *string           `json:"practice_id"`
	BackupScope model.BackupScope `json:"backup_scope"`
}

// Create takes a manual backup of one practice, or of every practice when
// practice_id is omitted. No schedule is advanced.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PracticeID != nil && *req.PracticeID == "" {
		req.PracticeID = nil
	}

	ctx, cancel := detached(r)
	defer cancel()

	result, err := h.runner.RunManual(ctx, req.PracticeID, req.BackupScope)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if result.Status == backup.StatusFailed {
		h.logger.Error("manual backup", "practice_id", req.PracticeID, "error", result.Error)
		writeError(w, http.StatusInternalServerError, result.Error)
		return
	}

	count, err := h.backups.CountByPractice(ctx, req.PracticeID)
	if err != nil {
		h.logger.Warn("count backups", "error", err)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"result":       result,
		"backup_count": count,
	})
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	backups, err := h.backups.List(r.Context(), store.ListFilter{
		PracticeID: r.URL.Query().Get("practice_id"),
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}

	writeJSON(w, http.StatusOK, backups)
}

func (h *BackupHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Verify re-runs verification of a stored artifact against the counts
// recorded at backup time. The ledger row is not modified.
func (h *BackupHandler) Verify(w http.ResponseWriter, r *http.Request) {
	b, ok := h.lookup(w, r)
	if !ok {
		return
	}

	report := h.verifier.Verify(r.Context(), b.FileURL, b.TablesIncluded, b.Metadata.TableRowCounts)
	if !report.Verified {
		h.logger.Warn("backup failed re-verification", "backup_id", b.ID, "errors", report.Errors)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"backup_id":    b.ID,
		"verification": report,
	})
}

type verifyResult struct {
	BackupID string   `json:"backup_id"`
	Verified bool     `json:"verified"`
	Errors   []string `json:"errors"`
}

// VerifyAll re-verifies the most recent backups, optionally for one
// practice. Like Verify it does not modify the ledger.
func (h *BackupHandler) VerifyAll(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit == 0 {
		limit = defaultVerifyAll
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	backups, err := h.backups.List(r.Context(), store.ListFilter{
		PracticeID: r.URL.Query().Get("practice_id"),
		Limit:      limit,
	})
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}

	results := make([]verifyResult, 0, len(backups))
	failed := 0
	for _, b := range backups {
		report := h.verifier.Verify(r.Context(), b.FileURL, b.TablesIncluded, b.Metadata.TableRowCounts)
		if !report.Verified {
			failed++
		}
		results = append(results, verifyResult{BackupID: b.ID, Verified: report.Verified, Errors: report.Errors})
	}
	if failed > 0 {
		h.logger.Warn("backups failed re-verification", "checked", len(results), "failed", failed)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checked":  len(results),
		"verified": len(results) - failed,
		"failed":   failed,
		"results":  results,
	})
}

func (h *BackupHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Backup, bool) {
	id := r.PathValue("id")
	b, err := h.backups.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get backup", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get backup")
		return nil, false
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "backup not found")
		return nil, false
	}
	return b, true
}
