package model

import "time"

type BackupScope string

const (
	BackupScopeFull       BackupScope = "full"
	BackupScopeTenantOnly BackupScope = "tenant-only"
)

type ScheduleType string

const (
	ScheduleDaily   ScheduleType = "daily"
	ScheduleWeekly  ScheduleType = "weekly"
	ScheduleMonthly ScheduleType = "monthly"
)

// BackupSchedule describes when and how a practice's backup runs.
// A nil PracticeID means the schedule covers every practice.
type BackupSchedule struct {
	ID            string       `json:"id"`
	PracticeID    *string      `json:"practice_id"`
	IsActive      bool         `json:"is_active"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
	BackupScope   BackupScope  `json:"backup_scope"`
	ScheduleType  ScheduleType `json:"schedule_type"`
	TimeOfDay     string       `json:"time_of_day"`
	DayOfWeek     *int         `json:"day_of_week"`
	DayOfMonth    *int         `json:"day_of_month"`
	RetentionDays int          `json:"retention_days"`
	LastRunAt     *time.Time   `json:"last_run_at"`
	NextRunAt     *time.Time   `json:"next_run_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TenantLabel returns the practice ID, or "full" for a global schedule.
func (s BackupSchedule) TenantLabel() string {
	if s.PracticeID == nil {
		return "full"
	}
	return *s.PracticeID
}
