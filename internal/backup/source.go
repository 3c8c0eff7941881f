// Package backup resolves due backup schedules, exports the catalog tables to
// a JSON artifact, uploads and verifies it, and records the result.
package backup

import (
	"fmt"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
)

// Source is a schedule selected for a run. It is either a Persisted row from
// the schedule store, a Fallback synthesized for this run only, or a Manual
// backup requested by an operator.
type Source interface {
	schedule() model.BackupSchedule
}

// Persisted is a schedule stored in backup_schedules.
type Persisted struct {
	Schedule model.BackupSchedule
}

func (p Persisted) schedule() model.BackupSchedule { return p.Schedule }

// Fallback is a synthetic daily full-scope schedule that is never written back.
type Fallback struct {
	Schedule model.BackupSchedule
}

func (f Fallback) schedule() model.BackupSchedule { return f.Schedule }

// Manual is an operator-requested backup. It is recorded as a manual backup
// and never advances or prunes anything.
type Manual struct {
	Schedule model.BackupSchedule
}

func (m Manual) schedule() model.BackupSchedule { return m.Schedule }

// ScheduleOf returns the schedule carried by src.
func ScheduleOf(src Source) model.BackupSchedule {
	return src.schedule()
}

const (
	fallbackTimeOfDay     = "02:00"
	fallbackRetentionDays = 30
)

func newFallback(practiceID *string, now time.Time) Fallback {
	s := model.BackupSchedule{
		PracticeID:    practiceID,
		IsActive:      true,
		BackupScope:   model.BackupScopeFull,
		ScheduleType:  model.ScheduleDaily,
		TimeOfDay:     fallbackTimeOfDay,
		RetentionDays: fallbackRetentionDays,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.ID = "fallback-" + s.TenantLabel()
	return Fallback{Schedule: s}
}

// NewManual builds the source for an on-demand backup of practiceID, or of
// every practice when practiceID is nil. An empty scope means full.
func NewManual(practiceID *string, scope model.BackupScope, now time.Time) (Manual, error) {
	switch scope {
	case "":
		scope = model.BackupScopeFull
	case model.BackupScopeFull, model.BackupScopeTenantOnly:
	default:
		return Manual{}, fmt.Errorf("unknown backup scope %q", scope)
	}
	s := model.BackupSchedule{
		PracticeID:  practiceID,
		IsActive:    true,
		BackupScope: scope,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.ID = "manual-" + s.TenantLabel()
	return Manual{Schedule: s}, nil
}

// backupTypeOf reports how a backup taken for src is labelled in the ledger.
func backupTypeOf(src Source) model.BackupType {
	if _, ok := src.(Manual); ok {
		return model.BackupTypeManual
	}
	return model.BackupTypeAutomatic
}
