package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/praxisbackup/internal/backup"
	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/dukerupert/praxisbackup/internal/store"
	"github.com/goccy/go-json"
)

// ScheduleInspector reports and repairs schedule health.
type ScheduleInspector interface {
	Diagnose(ctx context.Context, now time.Time) ([]backup.Diagnosis, error)
	RepairStale(ctx context.Context, now time.Time) ([]string, error)
}

type ScheduleHandler struct {
	schedules *store.ScheduleStore
	inspector ScheduleInspector
	now       func() time.Time
	logger    *slog.Logger
}

func NewScheduleHandler(schedules *store.ScheduleStore, inspector ScheduleInspector, loc *time.Location, logger *slog.Logger) *ScheduleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleHandler{
		schedules: schedules,
		inspector: inspector,
		now:       func() time.Time { return time.Now().In(loc) },
		logger:    logger,
	}
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.schedules.List(r.Context())
	if err != nil {
		h.logger.Error("list schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	if schedules == nil {
		schedules = []model.BackupSchedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (h *ScheduleHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	diagnoses, err := h.inspector.Diagnose(r.Context(), h.now())
	if err != nil {
		h.logger.Error("diagnose schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to diagnose schedules")
		return
	}
	if diagnoses == nil {
		diagnoses = []backup.Diagnosis{}
	}
	writeJSON(w, http.StatusOK, diagnoses)
}

func (h *ScheduleHandler) Repair(w http.ResponseWriter, r *http.Request) {
	repaired, err := h.inspector.RepairStale(r.Context(), h.now())
	if err != nil {
		h.logger.Error("repair schedules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to repair schedules")
		return
	}
	if repaired == nil {
		repaired = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"repaired": repaired,
		"count":    len(repaired),
	})
}

type updateScheduleRequest struct {
	IsActive *bool `json:"is_active"`
}

// Update pauses or resumes a schedule.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}

	if err := h.schedules.SetActive(r.Context(), sched.ID, *req.IsActive); err != nil {
		h.logger.Error("update schedule", "error", err, "id", sched.ID)
		writeError(w, http.StatusInternalServerError, "failed to update schedule")
		return
	}
	h.logger.Info("schedule updated", "id", sched.ID, "is_active", *req.IsActive)

	updated, err := h.schedules.GetByID(r.Context(), sched.ID)
	if err != nil || updated == nil {
		h.logger.Error("get schedule", "error", err, "id", sched.ID)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete soft-deletes a schedule. Its backups are kept.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sched, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.schedules.SoftDelete(r.Context(), sched.ID); err != nil {
		h.logger.Error("delete schedule", "error", err, "id", sched.ID)
		writeError(w, http.StatusInternalServerError, "failed to delete schedule")
		return
	}
	h.logger.Info("schedule deleted", "id", sched.ID)
	w.WriteHeader(http.StatusNoContent)
}

// lookup loads the schedule named by the path. Soft-deleted schedules are
// reported as missing.
func (h *ScheduleHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.BackupSchedule, bool) {
	id := r.PathValue("id")
	sched, err := h.schedules.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("get schedule", "error", err, "id", id)
		writeError(w, http.StatusInternalServerError, "failed to get schedule")
		return nil, false
	}
	if sched == nil || sched.DeletedAt != nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return nil, false
	}
	return sched, true
}
