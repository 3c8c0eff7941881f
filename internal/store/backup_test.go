package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
)

func newTestBackup(practiceID *string, typ model.BackupType, createdAt time.Time, key string) model.Backup {
	return model.Backup{
		PracticeID:     practiceID,
		BackupType:     typ,
		BackupScope:    model.BackupScopeFull,
		FileURL:        "https://files.example.com/" + key,
		ObjectKey:      key,
		FileSize:       128,
		Status:         model.BackupStatusVerified,
		TablesIncluded: []string{"todos"},
		CreatedAt:      createdAt,
	}
}

func TestBackupCreateAndGet(t *testing.T) {
	ctx := context.Background()
	bs := NewBackupStore(setupTestDB(t))

	b := newTestBackup(strPtr("p1"), model.BackupTypeAutomatic, time.Now(), "backup-a.json")
	b.ScheduleID = strPtr("s1")
	b.Metadata = model.BackupMetadata{
		Format:         "json",
		Version:        model.ArtifactVersion,
		Scheduled:      true,
		TotalRows:      3,
		TableRowCounts: map[string]int{"todos": 3},
		Verification: model.VerificationReport{
			Verified: true,
			Errors:   []string{},
		},
	}
	created, err := bs.Create(ctx, b)
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := bs.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if got == nil {
		t.Fatal("expected backup, got nil")
	}
	if got.ObjectKey != "backup-a.json" {
		t.Errorf("object_key = %q, want %q", got.ObjectKey, "backup-a.json")
	}
	if got.ScheduleID == nil || *got.ScheduleID != "s1" {
		t.Errorf("schedule_id = %v, want s1", got.ScheduleID)
	}
	if len(got.TablesIncluded) != 1 || got.TablesIncluded[0] != "todos" {
		t.Errorf("tables_included = %v, want [todos]", got.TablesIncluded)
	}
	if got.Metadata.TableRowCounts["todos"] != 3 {
		t.Errorf("metadata row count = %d, want 3", got.Metadata.TableRowCounts["todos"])
	}
	if !got.Metadata.Verification.Verified {
		t.Error("expected metadata verification to round-trip")
	}
}

func TestBackupGetByIDNotFound(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	b, err := bs.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if b != nil {
		t.Errorf("expected nil, got %+v", b)
	}
}

func TestBackupListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	bs := NewBackupStore(setupTestDB(t))
	base := time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC)

	bs.Create(ctx, newTestBackup(strPtr("p1"), model.BackupTypeAutomatic, base, "k1"))
	bs.Create(ctx, newTestBackup(strPtr("p1"), model.BackupTypeAutomatic, base.Add(24*time.Hour), "k2"))
	bs.Create(ctx, newTestBackup(strPtr("p2"), model.BackupTypeAutomatic, base, "k3"))

	list, err := bs.List(ctx, ListFilter{PracticeID: "p1"})
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ObjectKey != "k2" {
		t.Errorf("first = %q, want newest k2", list[0].ObjectKey)
	}

	all, _ := bs.List(ctx, ListFilter{Limit: 2})
	if len(all) != 2 {
		t.Errorf("limited len = %d, want 2", len(all))
	}
}

func TestBackupRetentionBoundary(t *testing.T) {
	ctx := context.Background()
	bs := NewBackupStore(setupTestDB(t))
	now := time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC)
	retention := 30
	cutoff := now.AddDate(0, 0, -retention)
	p := strPtr("p1")

	bs.Create(ctx, newTestBackup(p, model.BackupTypeAutomatic, now.AddDate(0, 0, -retention), "exact.json"))
	bs.Create(ctx, newTestBackup(p, model.BackupTypeAutomatic, now.AddDate(0, 0, -(retention+1)), "older.json"))
	bs.Create(ctx, newTestBackup(p, model.BackupTypeManual, now.AddDate(0, 0, -90), "manual.json"))
	bs.Create(ctx, newTestBackup(strPtr("p2"), model.BackupTypeAutomatic, now.AddDate(0, 0, -90), "other.json"))
	bs.Create(ctx, newTestBackup(nil, model.BackupTypeAutomatic, now.AddDate(0, 0, -90), "global.json"))

	keys, err := bs.DeleteAutomaticOlderThan(ctx, p, cutoff)
	if err != nil {
		t.Fatalf("delete old: %v", err)
	}
	if len(keys) != 1 || keys[0] != "older.json" {
		t.Errorf("deleted keys = %v, want [older.json]", keys)
	}

	count, _ := bs.CountByPractice(ctx, p)
	if count != 2 {
		t.Errorf("p1 remaining = %d, want 2 (exact + manual)", count)
	}
	if n, _ := bs.CountByPractice(ctx, strPtr("p2")); n != 1 {
		t.Errorf("p2 remaining = %d, want 1", n)
	}
}

func TestBackupRetentionGlobalPractice(t *testing.T) {
	ctx := context.Background()
	bs := NewBackupStore(setupTestDB(t))
	now := time.Date(2026, 6, 15, 2, 0, 0, 0, time.UTC)

	bs.Create(ctx, newTestBackup(nil, model.BackupTypeAutomatic, now.AddDate(0, 0, -40), "global-old.json"))
	bs.Create(ctx, newTestBackup(strPtr("p1"), model.BackupTypeAutomatic, now.AddDate(0, 0, -40), "tenant-old.json"))

	keys, err := bs.DeleteAutomaticOlderThan(ctx, nil, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete old: %v", err)
	}
	if len(keys) != 1 || keys[0] != "global-old.json" {
		t.Errorf("deleted keys = %v, want [global-old.json]", keys)
	}
	if n, _ := bs.CountByPractice(ctx, strPtr("p1")); n != 1 {
		t.Errorf("tenant backups remaining = %d, want 1", n)
	}
}
