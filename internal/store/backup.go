package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

const backupCols = `id, practice_id, schedule_id, backup_type, backup_scope, file_url, object_key, file_size,
	status, tables_included, metadata, created_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var practiceID, scheduleID sql.NullString
	var tables, metadata, createdAt string
	err := scanner.Scan(&b.ID, &practiceID, &scheduleID, &b.BackupType, &b.BackupScope, &b.FileURL, &b.ObjectKey,
		&b.FileSize, &b.Status, &tables, &metadata, &createdAt)
	if err != nil {
		return nil, err
	}
	if practiceID.Valid {
		b.PracticeID = &practiceID.String
	}
	if scheduleID.Valid {
		b.ScheduleID = &scheduleID.String
	}
	if err := json.Unmarshal([]byte(tables), &b.TablesIncluded); err != nil {
		return nil, fmt.Errorf("decode tables_included: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &b.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create appends a ledger entry. Empty ID and zero CreatedAt are filled in.
func (s *BackupStore) Create(ctx context.Context, b model.Backup) (*model.Backup, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	b.CreatedAt = b.CreatedAt.UTC()
	if b.TablesIncluded == nil {
		b.TablesIncluded = []string{}
	}

	tables, err := json.Marshal(b.TablesIncluded)
	if err != nil {
		return nil, fmt.Errorf("encode tables_included: %w", err)
	}
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backups (id, practice_id, schedule_id, backup_type, backup_scope, file_url, object_key, file_size,
			status, tables_included, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, nullString(b.PracticeID), nullString(b.ScheduleID), b.BackupType, b.BackupScope, b.FileURL, b.ObjectKey,
		b.FileSize, b.Status, string(tables), string(metadata), formatTime(b.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return &b, nil
}

func (s *BackupStore) GetByID(ctx context.Context, id string) (*model.Backup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return b, nil
}

// ListFilter narrows List. An empty PracticeID matches every practice.
type ListFilter struct {
	PracticeID string
	Limit      int
}

// List returns ledger entries, newest first.
func (s *BackupStore) List(ctx context.Context, f ListFilter) ([]model.Backup, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	q := `SELECT ` + backupCols + ` FROM backups`
	args := []any{}
	if f.PracticeID != "" {
		q += ` WHERE practice_id = ?`
		args = append(args, f.PracticeID)
	}
	q += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// DeleteAutomaticOlderThan deletes automatic backups of a practice (nil for
// global backups) created strictly before the cutoff and returns the object
// keys of the deleted entries.
func (s *BackupStore) DeleteAutomaticOlderThan(ctx context.Context, practiceID *string, before time.Time) ([]string, error) {
	keys, err := s.automaticKeysBefore(ctx, practiceID, before)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM backups WHERE backup_type = ? AND practice_id IS ? AND created_at < ?`,
		model.BackupTypeAutomatic, nullString(practiceID), formatTime(before),
	)
	if err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}

func (s *BackupStore) automaticKeysBefore(ctx context.Context, practiceID *string, before time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT object_key FROM backups WHERE backup_type = ? AND practice_id IS ? AND created_at < ?`,
		model.BackupTypeAutomatic, nullString(practiceID), formatTime(before),
	)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan object key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *BackupStore) CountByPractice(ctx context.Context, practiceID *string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backups WHERE practice_id IS ?`, nullString(practiceID),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count backups: %w", err)
	}
	return count, nil
}
