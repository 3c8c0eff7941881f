package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/dukerupert/praxisbackup/internal/recurrence"
	"github.com/dukerupert/praxisbackup/internal/store"
)

const (
	// StaleAfter is how far next_run_at may lag behind now before a schedule
	// is considered stuck and repaired.
	StaleAfter = 48 * time.Hour

	fallbackPracticeLimit = 10
)

// Resolution is the batch a run will process.
type Resolution struct {
	Sources  []Source
	Repaired []string
	Fallback bool
}

// Resolver picks the schedules to run. It never yields an empty batch.
type Resolver struct {
	schedules *store.ScheduleStore
	practices *store.PracticeStore
	logger    *slog.Logger
}

func NewResolver(schedules *store.ScheduleStore, practices *store.PracticeStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		schedules: schedules,
		practices: practices,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve returns the due schedules, repairing stuck ones, or fallback
// schedules when nothing is due. Store errors are logged and lead to
// fallbacks; only a cancelled context is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Resolution{}
	staleBefore := now.Add(-StaleAfter)

	due, err := r.schedules.ListDue(ctx, now)
	if err != nil {
		r.logger.Warn("schedule store unavailable, using fallback", "error", err)
		return r.fallback(ctx, now, res)
	}
	for _, s := range due {
		if s.NextRunAt != nil && s.NextRunAt.Before(staleBefore) {
			s = r.repair(ctx, s, now, res)
		}
		res.Sources = append(res.Sources, Persisted{Schedule: s})
	}

	if len(res.Sources) == 0 {
		stale, err := r.schedules.ListStale(ctx, staleBefore)
		if err != nil {
			r.logger.Warn("list stale schedules", "error", err)
		}
		for _, s := range stale {
			s = r.repair(ctx, s, now, res)
			res.Sources = append(res.Sources, Persisted{Schedule: s})
		}
	}

	if len(res.Sources) == 0 {
		return r.fallback(ctx, now, res)
	}
	return res, nil
}

// repair gives a stuck schedule a fresh next run. A failed write is logged;
// the schedule still runs and the ledger advances it afterwards.
func (r *Resolver) repair(ctx context.Context, s model.BackupSchedule, now time.Time, res *Resolution) model.BackupSchedule {
	next := recurrence.NextRun(now, cadenceOf(s))
	if err := r.schedules.SetNextRun(ctx, s.ID, next, now); err != nil {
		r.logger.Warn("repair stale schedule", "schedule_id", s.ID, "error", err)
		return s
	}
	r.logger.Info("repaired stale schedule", "schedule_id", s.ID, "previous_next_run", s.NextRunAt, "next_run", next)
	schedulesRepaired.Inc()
	s.NextRunAt = &next
	s.UpdatedAt = now
	res.Repaired = append(res.Repaired, s.ID)
	return s
}

func (r *Resolver) fallback(ctx context.Context, now time.Time, res *Resolution) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Fallback = true
	fallbackRuns.Inc()

	practices, err := r.practices.List(ctx, fallbackPracticeLimit)
	if err != nil {
		r.logger.Warn("list practices for fallback", "error", err)
	}
	for _, p := range practices {
		id := p.ID
		res.Sources = append(res.Sources, newFallback(&id, now))
	}
	if len(res.Sources) == 0 {
		res.Sources = append(res.Sources, newFallback(nil, now))
	}
	r.logger.Info("no due schedules, synthesized fallback", "count", len(res.Sources))
	return res, nil
}

// RepairStale fixes stuck schedules without running a backup and returns
// the IDs it repaired.
func (r *Resolver) RepairStale(ctx context.Context, now time.Time) ([]string, error) {
	stale, err := r.schedules.ListStale(ctx, now.Add(-StaleAfter))
	if err != nil {
		return nil, err
	}
	res := &Resolution{}
	for _, s := range stale {
		r.repair(ctx, s, now, res)
	}
	return res.Repaired, nil
}

type Health string

const (
	HealthInactive       Health = "inactive"
	HealthScheduled      Health = "scheduled"
	HealthDue            Health = "due"
	HealthStale          Health = "stale"
	HealthMissingNextRun Health = "missing_next_run"
)

// Diagnosis describes one schedule's state relative to now. Lag is how far
// next_run_at is behind now; negative when it is still ahead.
type Diagnosis struct {
	Schedule model.BackupSchedule `json:"schedule"`
	Health   Health               `json:"health"`
	Lag      string               `json:"lag,omitempty"`
}

// Diagnose classifies every schedule that has not been deleted.
func (r *Resolver) Diagnose(ctx context.Context, now time.Time) ([]Diagnosis, error) {
	schedules, err := r.schedules.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Diagnosis, 0, len(schedules))
	for _, s := range schedules {
		d := Diagnosis{Schedule: s, Health: classify(s, now)}
		if s.NextRunAt != nil {
			d.Lag = now.Sub(*s.NextRunAt).Round(time.Second).String()
		}
		out = append(out, d)
	}
	return out, nil
}

func classify(s model.BackupSchedule, now time.Time) Health {
	switch {
	case !s.IsActive:
		return HealthInactive
	case s.NextRunAt == nil:
		return HealthMissingNextRun
	case s.NextRunAt.Before(now.Add(-StaleAfter)):
		return HealthStale
	case !s.NextRunAt.After(now):
		return HealthDue
	default:
		return HealthScheduled
	}
}

func cadenceOf(s model.BackupSchedule) recurrence.Cadence {
	return recurrence.Cadence{
		Type:       string(s.ScheduleType),
		TimeOfDay:  s.TimeOfDay,
		DayOfWeek:  s.DayOfWeek,
		DayOfMonth: s.DayOfMonth,
	}
}
