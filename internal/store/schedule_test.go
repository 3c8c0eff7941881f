package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
)

func TestScheduleCreateDefaults(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))

	s, err := ss.Create(ctx, model.BackupSchedule{IsActive: true})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	if s.ID == "" {
		t.Error("expected generated ID")
	}
	if s.BackupScope != model.BackupScopeFull {
		t.Errorf("scope = %q, want %q", s.BackupScope, model.BackupScopeFull)
	}
	if s.ScheduleType != model.ScheduleDaily {
		t.Errorf("type = %q, want %q", s.ScheduleType, model.ScheduleDaily)
	}
	if s.TimeOfDay != "02:00" {
		t.Errorf("time_of_day = %q, want %q", s.TimeOfDay, "02:00")
	}
	if s.RetentionDays != 30 {
		t.Errorf("retention_days = %d, want 30", s.RetentionDays)
	}
	if s.PracticeID != nil {
		t.Errorf("practice_id = %q, want nil", *s.PracticeID)
	}
	if s.NextRunAt != nil {
		t.Errorf("next_run_at = %v, want nil", s.NextRunAt)
	}
}

func TestScheduleRoundTripsOptionalFields(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	ps := NewPracticeStore(db)
	ss := NewScheduleStore(db)

	p, err := ps.Create(ctx, "Harbor Dental")
	if err != nil {
		t.Fatalf("create practice: %v", err)
	}
	next := time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC)
	s, err := ss.Create(ctx, model.BackupSchedule{
		PracticeID:    &p.ID,
		IsActive:      true,
		BackupScope:   model.BackupScopeTenantOnly,
		ScheduleType:  model.ScheduleWeekly,
		TimeOfDay:     "03:30",
		DayOfWeek:     intPtr(1),
		RetentionDays: 7,
		NextRunAt:     &next,
	})
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	got, err := ss.GetByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if got.PracticeID == nil || *got.PracticeID != p.ID {
		t.Errorf("practice_id = %v, want %q", got.PracticeID, p.ID)
	}
	if got.DayOfWeek == nil || *got.DayOfWeek != 1 {
		t.Errorf("day_of_week = %v, want 1", got.DayOfWeek)
	}
	if got.DayOfMonth != nil {
		t.Errorf("day_of_month = %v, want nil", *got.DayOfMonth)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v, want %v", got.NextRunAt, next)
	}
	if !got.IsActive {
		t.Error("expected active schedule")
	}
}

func TestScheduleGetByIDNotFound(t *testing.T) {
	ss := NewScheduleStore(setupTestDB(t))
	s, err := ss.GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if s != nil {
		t.Errorf("expected nil schedule, got %+v", s)
	}
}

func TestScheduleListDue(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	exact := now
	future := now.Add(time.Hour)

	mk := func(active bool, next *time.Time) string {
		t.Helper()
		s, err := ss.Create(ctx, model.BackupSchedule{IsActive: active, NextRunAt: next})
		if err != nil {
			t.Fatalf("create schedule: %v", err)
		}
		return s.ID
	}

	dueEarly := mk(true, &past)
	dueExact := mk(true, &exact)
	mk(true, &future)
	mk(true, nil)
	mk(false, &past)
	deleted := mk(true, &past)
	if err := ss.SoftDelete(ctx, deleted); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	due, err := ss.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2", len(due))
	}
	if due[0].ID != dueEarly || due[1].ID != dueExact {
		t.Errorf("due order = [%s %s], want [%s %s]", due[0].ID, due[1].ID, dueEarly, dueExact)
	}
}

func TestScheduleListDueMixedTimeFormats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	ss := NewScheduleStore(db)
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)

	mk := func(next string) string {
		t.Helper()
		s, err := ss.Create(ctx, model.BackupSchedule{IsActive: true})
		if err != nil {
			t.Fatalf("create schedule: %v", err)
		}
		if _, err := db.ExecContext(ctx, `UPDATE backup_schedules SET next_run_at = ? WHERE id = ?`, next, s.ID); err != nil {
			t.Fatalf("set next_run_at: %v", err)
		}
		return s.ID
	}

	later := mk("2026-05-01 03:00:00")
	earlier := mk("2026-05-01 01:30:00")
	first := mk("2026-05-01T01:00:00.000000Z")

	due, err := ss.ListDue(ctx, now)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 2 || due[0].ID != first || due[1].ID != earlier {
		t.Errorf("due = %+v, want [%s %s]", due, first, earlier)
	}
	for _, s := range due {
		if s.ID == later {
			t.Errorf("schedule at 03:00 listed as due at 02:00")
		}
	}

	stale, err := ss.ListStale(ctx, time.Date(2026, 5, 1, 1, 45, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 2 {
		t.Errorf("stale = %d, want 2", len(stale))
	}
}

func TestScheduleListStale(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	cutoff := now.Add(-48 * time.Hour)

	old := now.Add(-72 * time.Hour)
	recent := now.Add(-time.Hour)

	stuck, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true, NextRunAt: &old})
	never, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true})
	ss.Create(ctx, model.BackupSchedule{IsActive: true, NextRunAt: &recent})
	ss.Create(ctx, model.BackupSchedule{IsActive: false, NextRunAt: &old})

	stale, err := ss.ListStale(ctx, cutoff)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	ids := map[string]bool{}
	for _, s := range stale {
		ids[s.ID] = true
	}
	if len(stale) != 2 || !ids[stuck.ID] || !ids[never.ID] {
		t.Errorf("stale = %v, want %s and %s", ids, stuck.ID, never.ID)
	}
}

func TestScheduleMarkRun(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	past := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	s, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true, NextRunAt: &past})

	ranAt := past.Add(5 * time.Minute)
	next := past.AddDate(0, 0, 1)
	if err := ss.MarkRun(ctx, s.ID, ranAt, next); err != nil {
		t.Fatalf("mark run: %v", err)
	}

	got, _ := ss.GetByID(ctx, s.ID)
	if got.LastRunAt == nil || !got.LastRunAt.Equal(ranAt) {
		t.Errorf("last_run_at = %v, want %v", got.LastRunAt, ranAt)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v, want %v", got.NextRunAt, next)
	}
	if !got.UpdatedAt.Equal(ranAt) {
		t.Errorf("updated_at = %v, want %v", got.UpdatedAt, ranAt)
	}
}

func TestScheduleSetNextRunKeepsLastRun(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	s, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true})

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 0, 1)
	if err := ss.SetNextRun(ctx, s.ID, next, now); err != nil {
		t.Fatalf("set next run: %v", err)
	}
	got, _ := ss.GetByID(ctx, s.ID)
	if got.LastRunAt != nil {
		t.Errorf("last_run_at = %v, want nil", got.LastRunAt)
	}
	if got.NextRunAt == nil || !got.NextRunAt.Equal(next) {
		t.Errorf("next_run_at = %v, want %v", got.NextRunAt, next)
	}
}

func TestScheduleSoftDeleteHidesFromList(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	a, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true})
	b, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true})

	if err := ss.SoftDelete(ctx, a.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	list, err := ss.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("list = %+v, want only %s", list, b.ID)
	}

	// The row is still there.
	got, _ := ss.GetByID(ctx, a.ID)
	if got == nil || got.DeletedAt == nil {
		t.Error("expected soft-deleted row with deleted_at set")
	}
}

func TestScheduleSetActive(t *testing.T) {
	ctx := context.Background()
	ss := NewScheduleStore(setupTestDB(t))
	s, _ := ss.Create(ctx, model.BackupSchedule{IsActive: true})

	if err := ss.SetActive(ctx, s.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	got, _ := ss.GetByID(ctx, s.ID)
	if got.IsActive {
		t.Error("expected inactive schedule")
	}
}
