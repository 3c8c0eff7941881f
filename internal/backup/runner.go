package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/goccy/go-json"
)

type Stage string

const (
	StageExport Stage = "export"
	StageEncode Stage = "encode"
	StageUpload Stage = "upload"
	StageRecord Stage = "record"
)

// StageError is a per-schedule failure in one pipeline stage.
type StageError struct {
	Stage      Stage
	ScheduleID string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for schedule %s: %v", e.Stage, e.ScheduleID, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type VerificationSummary struct {
	Verified bool     `json:"verified"`
	Errors   []string `json:"errors"`
}

// ScheduleResult is the outcome of one schedule in a batch.
type ScheduleResult struct {
	ScheduleID   string               `json:"schedule_id"`
	BackupID     string               `json:"backup_id,omitempty"`
	PracticeID   *string              `json:"practice_id"`
	TotalRows    int                  `json:"total_rows"`
	TablesCount  int                  `json:"tables_count"`
	Status       string               `json:"status"`
	Verification *VerificationSummary `json:"verification,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// MarshalJSON writes success entries with every field, row counts included
// when zero, and failure entries with only the identity, status and error.
func (r ScheduleResult) MarshalJSON() ([]byte, error) {
	type result ScheduleResult
	if r.Status != StatusFailed {
		return json.Marshal(result(r))
	}
	return json.Marshal(struct {
		ScheduleID string  `json:"schedule_id"`
		PracticeID *string `json:"practice_id"`
		Status     string  `json:"status"`
		Error      string  `json:"error"`
	}{r.ScheduleID, r.PracticeID, r.Status, r.Error})
}

// BatchResult is the response of one run.
type BatchResult struct {
	Success   bool             `json:"success"`
	Processed int              `json:"processed"`
	Results   []ScheduleResult `json:"results"`
	Repaired  []string         `json:"repaired,omitempty"`
	Fallback  bool             `json:"fallback,omitempty"`
}

type EventType string

const (
	EventRunStarted       EventType = "backup_run_started"
	EventScheduleFinished EventType = "backup_schedule_finished"
	EventRunFinished      EventType = "backup_run_finished"
)

// Event is emitted while a run progresses.
type Event struct {
	Type   EventType       `json:"type"`
	Time   time.Time       `json:"time"`
	Result *ScheduleResult `json:"result,omitempty"`
	Batch  *BatchResult    `json:"batch,omitempty"`
}

// EventCallback is called for every run event.
type EventCallback func(Event)

// Runner executes the backup pipeline for every resolved schedule. Runs are
// serialized; a second Run waits for the first to finish.
type Runner struct {
	mu       sync.Mutex
	resolver *Resolver
	exporter ArtifactExporter
	store    ArtifactStore
	verifier *Verifier
	ledger   *Ledger
	callback EventCallback
	logger   *slog.Logger
	now      func() time.Time
}

func NewRunner(resolver *Resolver, exporter ArtifactExporter, store ArtifactStore, verifier *Verifier, ledger *Ledger, callback EventCallback, logger *slog.Logger) *Runner {
	return &Runner{
		resolver: resolver,
		exporter: exporter,
		store:    store,
		verifier: verifier,
		ledger:   ledger,
		callback: callback,
		logger:   logger.With("component", "runner"),
		now:      time.Now,
	}
}

// SetLocation makes the runner compute schedule times in loc.
func (r *Runner) SetLocation(loc *time.Location) {
	r.mu.Lock()
	r.now = func() time.Time { return time.Now().In(loc) }
	r.mu.Unlock()
}

// Run resolves the due schedules and backs each one up in turn. A failing
// schedule is reported in the result and does not stop the batch; Run only
// returns an error when resolution itself fails.
func (r *Runner) Run(ctx context.Context) (*BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	now := r.now()
	r.emit(Event{Type: EventRunStarted, Time: now})

	res, err := r.resolver.Resolve(ctx, now)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve schedules: %w", err)
	}

	batch := &BatchResult{
		Success:   true,
		Processed: len(res.Sources),
		Results:   make([]ScheduleResult, 0, len(res.Sources)),
		Repaired:  res.Repaired,
		Fallback:  res.Fallback,
	}
	for _, src := range res.Sources {
		result := r.runOne(ctx, src, now)
		schedulesProcessed.WithLabelValues(result.Status).Inc()
		batch.Results = append(batch.Results, result)
		r.emit(Event{Type: EventScheduleFinished, Time: time.Now(), Result: &result})
	}

	runsTotal.WithLabelValues("success").Inc()
	runDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("backup run finished", "processed", batch.Processed, "fallback", batch.Fallback,
		"repaired", len(batch.Repaired), "duration", time.Since(start))
	r.emit(Event{Type: EventRunFinished, Time: time.Now(), Batch: batch})
	return batch, nil
}

// RunManual takes an on-demand backup of one practice, or of every practice
// when practiceID is nil. No schedule is advanced and nothing is pruned. It
// waits for any run in progress.
func (r *Runner) RunManual(ctx context.Context, practiceID *string, scope model.BackupScope) (*ScheduleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	src, err := NewManual(practiceID, scope, now)
	if err != nil {
		return nil, err
	}
	result := r.runOne(ctx, src, now)
	schedulesProcessed.WithLabelValues(result.Status).Inc()
	r.emit(Event{Type: EventScheduleFinished, Time: time.Now(), Result: &result})
	return &result, nil
}

func (r *Runner) runOne(ctx context.Context, src Source, now time.Time) ScheduleResult {
	sched := src.schedule()
	result := ScheduleResult{ScheduleID: sched.ID, PracticeID: sched.PracticeID}

	backup, snap, report, err := r.process(ctx, src, now)
	if err != nil {
		var se *StageError
		if errors.As(err, &se) {
			stageFailures.WithLabelValues(string(se.Stage)).Inc()
		}
		r.logger.Error("backup schedule failed", "schedule_id", sched.ID, "error", err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}

	// The schedule must move forward even when verification failed, or it
	// would be picked up again on every run.
	if err := r.ledger.Advance(ctx, src, now); err != nil {
		r.logger.Warn("advance schedule", "schedule_id", sched.ID, "error", err)
	}
	if _, err := r.ledger.Prune(ctx, src, now); err != nil {
		r.logger.Warn("prune backups", "schedule_id", sched.ID, "error", err)
	}

	result.Status = StatusSuccess
	result.BackupID = backup.ID
	result.TotalRows = snap.Artifact.TotalRows
	result.TablesCount = len(snap.Tables)
	result.Verification = &VerificationSummary{Verified: report.Verified, Errors: report.Errors}
	r.logger.Info("backup schedule finished", "schedule_id", sched.ID, "backup_id", backup.ID,
		"rows", snap.Artifact.TotalRows, "verified", report.Verified)
	return result
}

func (r *Runner) process(ctx context.Context, src Source, now time.Time) (*model.Backup, *Snapshot, model.VerificationReport, error) {
	sched := src.schedule()
	var report model.VerificationReport
	fail := func(stage Stage, err error) (*model.Backup, *Snapshot, model.VerificationReport, error) {
		return nil, nil, report, &StageError{Stage: stage, ScheduleID: sched.ID, Err: err}
	}

	snap, err := r.exporter.Export(ctx, sched, now)
	if err != nil {
		return fail(StageExport, err)
	}

	snap.Artifact.BackupType = backupTypeOf(src)
	body, err := Encode(snap.Artifact)
	if err != nil {
		return fail(StageEncode, err)
	}

	key := ObjectKey(now, sched.PracticeID)
	url, err := r.store.Put(ctx, key, body)
	if err != nil {
		return fail(StageUpload, err)
	}
	artifactBytes.Observe(float64(len(body)))

	report = r.verifier.Verify(ctx, url, snap.Tables, snap.Artifact.TableRowCounts)
	if !report.Verified {
		r.logger.Warn("backup verification failed", "schedule_id", sched.ID, "errors", report.Errors)
	}

	backup, err := r.ledger.Record(ctx, src, snap, Upload{Key: key, URL: url, Size: int64(len(body))}, report)
	if err != nil {
		return fail(StageRecord, err)
	}
	return backup, snap, report, nil
}

func (r *Runner) emit(e Event) {
	if r.callback != nil {
		r.callback(e)
	}
}
