package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/google/uuid"
)

type ScheduleStore struct {
	db *sql.DB
}

func NewScheduleStore(db *sql.DB) *ScheduleStore {
	return &ScheduleStore{db: db}
}

const scheduleCols = `id, practice_id, is_active, deleted_at, backup_scope, schedule_type, time_of_day,
	day_of_week, day_of_month, retention_days, last_run_at, next_run_at, created_at, updated_at`

func scanSchedule(scanner interface{ Scan(...any) error }) (*model.BackupSchedule, error) {
	var s model.BackupSchedule
	var practiceID, deletedAt, lastRun, nextRun sql.NullString
	var dow, dom sql.NullInt64
	var createdAt, updatedAt string
	err := scanner.Scan(&s.ID, &practiceID, &s.IsActive, &deletedAt, &s.BackupScope, &s.ScheduleType, &s.TimeOfDay,
		&dow, &dom, &s.RetentionDays, &lastRun, &nextRun, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if practiceID.Valid {
		s.PracticeID = &practiceID.String
	}
	if dow.Valid {
		v := int(dow.Int64)
		s.DayOfWeek = &v
	}
	if dom.Valid {
		v := int(dom.Int64)
		s.DayOfMonth = &v
	}
	if s.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	if s.LastRunAt, err = parseNullTime(lastRun); err != nil {
		return nil, err
	}
	if s.NextRunAt, err = parseNullTime(nextRun); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a schedule. An empty ID is replaced with a new UUID.
func (s *ScheduleStore) Create(ctx context.Context, sched model.BackupSchedule) (*model.BackupSchedule, error) {
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	if sched.BackupScope == "" {
		sched.BackupScope = model.BackupScopeFull
	}
	if sched.ScheduleType == "" {
		sched.ScheduleType = model.ScheduleDaily
	}
	if sched.TimeOfDay == "" {
		sched.TimeOfDay = "02:00"
	}
	if sched.RetentionDays <= 0 {
		sched.RetentionDays = 30
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backup_schedules (id, practice_id, is_active, deleted_at, backup_scope, schedule_type, time_of_day,
			day_of_week, day_of_month, retention_days, last_run_at, next_run_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, nullString(sched.PracticeID), sched.IsActive, nullTime(sched.DeletedAt), sched.BackupScope,
		sched.ScheduleType, sched.TimeOfDay, nullInt(sched.DayOfWeek), nullInt(sched.DayOfMonth), sched.RetentionDays,
		nullTime(sched.LastRunAt), nullTime(sched.NextRunAt), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return s.GetByID(ctx, sched.ID)
}

func (s *ScheduleStore) GetByID(ctx context.Context, id string) (*model.BackupSchedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleCols+` FROM backup_schedules WHERE id = ?`, id)
	sched, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule %s: %w", id, err)
	}
	return sched, nil
}

// List returns all schedules that have not been soft-deleted.
func (s *ScheduleStore) List(ctx context.Context) ([]model.BackupSchedule, error) {
	return s.query(ctx, "list schedules",
		`SELECT `+scheduleCols+` FROM backup_schedules WHERE deleted_at IS NULL ORDER BY created_at ASC`)
}

// ListDue returns active schedules whose next run is at or before now.
// Times are compared with julianday so rows written by other tools in any
// SQLite time format still order correctly.
func (s *ScheduleStore) ListDue(ctx context.Context, now time.Time) ([]model.BackupSchedule, error) {
	return s.query(ctx, "list due schedules",
		`SELECT `+scheduleCols+` FROM backup_schedules
		 WHERE is_active = 1 AND deleted_at IS NULL AND next_run_at IS NOT NULL
		   AND julianday(next_run_at) <= julianday(?)
		 ORDER BY julianday(next_run_at) ASC`,
		formatTime(now),
	)
}

// ListStale returns active schedules whose next run is before the given
// time, or that have no next run at all.
func (s *ScheduleStore) ListStale(ctx context.Context, before time.Time) ([]model.BackupSchedule, error) {
	return s.query(ctx, "list stale schedules",
		`SELECT `+scheduleCols+` FROM backup_schedules
		 WHERE is_active = 1 AND deleted_at IS NULL
		   AND (next_run_at IS NULL OR julianday(next_run_at) < julianday(?))
		 ORDER BY created_at ASC`,
		formatTime(before),
	)
}

func (s *ScheduleStore) query(ctx context.Context, op, q string, args ...any) ([]model.BackupSchedule, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var schedules []model.BackupSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, *sched)
	}
	return schedules, rows.Err()
}

// SetNextRun persists a repaired next run time without touching last_run_at.
func (s *ScheduleStore) SetNextRun(ctx context.Context, id string, next, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_schedules SET next_run_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(next), formatTime(now), id,
	)
	if err != nil {
		return fmt.Errorf("set next run: %w", err)
	}
	return nil
}

// MarkRun records a completed run and advances the schedule.
func (s *ScheduleStore) MarkRun(ctx context.Context, id string, ranAt, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_schedules SET last_run_at = ?, next_run_at = ?, updated_at = ? WHERE id = ?`,
		formatTime(ranAt), formatTime(next), formatTime(ranAt), id,
	)
	if err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	return nil
}

// SetActive pauses or resumes a schedule.
func (s *ScheduleStore) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_schedules SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set schedule active: %w", err)
	}
	return nil
}

// SoftDelete marks a schedule deleted. Schedules are never removed.
func (s *ScheduleStore) SoftDelete(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`UPDATE backup_schedules SET deleted_at = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	return nil
}
