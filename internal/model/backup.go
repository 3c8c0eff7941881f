package model

import "time"

type BackupType string

const (
	BackupTypeAutomatic BackupType = "automatic"
	BackupTypeManual    BackupType = "manual"
)

type BackupStatus string

const (
	BackupStatusVerified  BackupStatus = "verified"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup is one row of the backups ledger.
type Backup struct {
	ID             string         `json:"id"`
	PracticeID     *string        `json:"practice_id"`
	ScheduleID     *string        `json:"schedule_id"`
	BackupType     BackupType     `json:"backup_type"`
	BackupScope    BackupScope    `json:"backup_scope"`
	FileURL        string         `json:"file_url"`
	ObjectKey      string         `json:"object_key"`
	FileSize       int64          `json:"file_size"`
	Status         BackupStatus   `json:"status"`
	TablesIncluded []string       `json:"tables_included"`
	Metadata       BackupMetadata `json:"metadata"`
	CreatedAt      time.Time      `json:"created_at"`
}

// BackupMetadata is stored as JSON alongside each ledger row.
type BackupMetadata struct {
	Compressed     bool               `json:"compressed"`
	Format         string             `json:"format"`
	Version        string             `json:"version"`
	ScheduleID     *string            `json:"schedule_id"`
	Scheduled      bool               `json:"scheduled"`
	Fallback       bool               `json:"fallback"`
	TotalRows      int                `json:"total_rows"`
	TableRowCounts map[string]int     `json:"table_row_counts"`
	BlobURL        string             `json:"blob_url"`
	ContentDigest  string             `json:"content_digest,omitempty"`
	Verification   VerificationReport `json:"verification"`
}
