package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/praxisbackup/internal/backup"
)

const alertTimeout = 15 * time.Second

// RunAlerter emails a report when a run finishes with failed or unverified
// schedules. Clean runs send nothing.
type RunAlerter struct {
	client *Client
	to     string
	logger *slog.Logger
}

func NewRunAlerter(client *Client, to string, logger *slog.Logger) *RunAlerter {
	return &RunAlerter{
		client: client,
		to:     to,
		logger: logger.With("component", "alerts"),
	}
}

// OnEvent handles runner events. Only run-finished events are reported.
func (a *RunAlerter) OnEvent(e backup.Event) {
	if e.Type != backup.EventRunFinished || e.Batch == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	if err := a.Notify(ctx, e.Batch); err != nil {
		a.logger.Error("send backup alert", "error", err)
	}
}

// Notify sends the report for b if it has problems.
func (a *RunAlerter) Notify(ctx context.Context, b *backup.BatchResult) error {
	msg, ok := runReport(b)
	if !ok {
		return nil
	}
	msg.To = a.to
	if err := a.client.Send(ctx, msg); err != nil {
		return err
	}
	a.logger.Info("backup alert sent", "to", a.to)
	return nil
}

func runReport(b *backup.BatchResult) (Message, bool) {
	var failed, unverified []backup.ScheduleResult
	for _, r := range b.Results {
		switch {
		case r.Status == backup.StatusFailed:
			failed = append(failed, r)
		case r.Verification != nil && !r.Verification.Verified:
			unverified = append(unverified, r)
		}
	}
	if len(failed) == 0 && len(unverified) == 0 {
		return Message{}, false
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Processed %d schedule(s): %d failed, %d unverified.\n", b.Processed, len(failed), len(unverified))
	if b.Fallback {
		sb.WriteString("No persisted schedule was due; fallback schedules were used.\n")
	}
	for _, r := range failed {
		fmt.Fprintf(&sb, "\nFAILED %s\n  %s\n", r.ScheduleID, r.Error)
	}
	for _, r := range unverified {
		fmt.Fprintf(&sb, "\nUNVERIFIED %s (backup %s)\n", r.ScheduleID, r.BackupID)
		for _, e := range r.Verification.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e)
		}
	}

	subject := fmt.Sprintf("Backup run: %d failed, %d unverified", len(failed), len(unverified))
	return Message{Subject: subject, Text: sb.String(), Tag: "backup-alert"}, true
}
