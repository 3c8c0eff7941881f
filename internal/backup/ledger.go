package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/dukerupert/praxisbackup/internal/recurrence"
	"github.com/dukerupert/praxisbackup/internal/store"
)

// Upload describes where an artifact was written.
type Upload struct {
	Key  string
	URL  string
	Size int64
}

// Ledger records completed backups, advances schedules, and applies retention.
type Ledger struct {
	backups   *store.BackupStore
	schedules *store.ScheduleStore
	objects   ArtifactStore
	logger    *slog.Logger
}

func NewLedger(backups *store.BackupStore, schedules *store.ScheduleStore, objects ArtifactStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		backups:   backups,
		schedules: schedules,
		objects:   objects,
		logger:    logger.With("component", "ledger"),
	}
}

// Record inserts the ledger entry for an uploaded artifact. The entry is
// "verified" when verification passed and "completed" otherwise.
func (l *Ledger) Record(ctx context.Context, src Source, snap *Snapshot, up Upload, report model.VerificationReport) (*model.Backup, error) {
	sched := src.schedule()
	art := snap.Artifact

	var scheduleID *string
	_, fallback := src.(Fallback)
	_, persisted := src.(Persisted)
	if persisted {
		id := sched.ID
		scheduleID = &id
	}

	status := model.BackupStatusCompleted
	if report.Verified {
		status = model.BackupStatusVerified
	}

	b, err := l.backups.Create(ctx, model.Backup{
		PracticeID:     sched.PracticeID,
		ScheduleID:     scheduleID,
		BackupType:     backupTypeOf(src),
		BackupScope:    sched.BackupScope,
		FileURL:        up.URL,
		ObjectKey:      up.Key,
		FileSize:       up.Size,
		Status:         status,
		TablesIncluded: snap.Tables,
		Metadata: model.BackupMetadata{
			Compressed:     false,
			Format:         "json",
			Version:        model.ArtifactVersion,
			ScheduleID:     scheduleID,
			Scheduled:      persisted || fallback,
			Fallback:       fallback,
			TotalRows:      art.TotalRows,
			TableRowCounts: art.TableRowCounts,
			BlobURL:        up.URL,
			ContentDigest:  report.ContentDigest,
			Verification:   report,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("record backup: %w", err)
	}
	return b, nil
}

// Advance moves a persisted schedule to its next run. Fallbacks and manual
// backups are not stored schedules and are left alone.
func (l *Ledger) Advance(ctx context.Context, src Source, now time.Time) error {
	switch s := src.(type) {
	case Persisted:
		next := recurrence.NextRun(now, cadenceOf(s.Schedule))
		if err := l.schedules.MarkRun(ctx, s.Schedule.ID, now, next); err != nil {
			return fmt.Errorf("advance schedule %s: %w", s.Schedule.ID, err)
		}
		l.logger.Debug("schedule advanced", "schedule_id", s.Schedule.ID, "next_run", next)
		return nil
	case Fallback, Manual:
		return nil
	default:
		return fmt.Errorf("unknown schedule source %T", src)
	}
}

// Prune deletes automatic backups of the schedule's practice created more
// than retention_days before now, and their stored objects. Object delete
// failures are logged and do not fail the prune.
//
// Only persisted schedules prune. A fallback carries a fixed retention that
// may be shorter than the practice's own schedule, so it keeps everything.
func (l *Ledger) Prune(ctx context.Context, src Source, now time.Time) (int, error) {
	p, ok := src.(Persisted)
	if !ok {
		return 0, nil
	}
	sched := p.Schedule
	if sched.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -sched.RetentionDays)
	keys, err := l.backups.DeleteAutomaticOlderThan(ctx, sched.PracticeID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune backups: %w", err)
	}

	for _, key := range keys {
		if key == "" || l.objects == nil {
			continue
		}
		if err := l.objects.Delete(ctx, key); err != nil {
			l.logger.Warn("delete pruned object", "key", key, "error", err)
		}
	}
	if len(keys) > 0 {
		backupsPruned.Add(float64(len(keys)))
		l.logger.Info("pruned old backups", "practice", sched.TenantLabel(), "count", len(keys), "cutoff", cutoff)
	}
	return len(keys), nil
}
