package backup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/praxisbackup/internal/catalog"
	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/goccy/go-json"
)

// TableReader reads all rows of a table, optionally filtered by column.
type TableReader interface {
	ReadTable(ctx context.Context, table, column string, value *string) ([]model.Row, error)
}

// ArtifactExporter produces the artifact for one schedule.
type ArtifactExporter interface {
	Export(ctx context.Context, sched model.BackupSchedule, now time.Time) (*Snapshot, error)
}

// Snapshot is an exported artifact plus the table set it was built from.
// Tables lists every requested table, including ones that could not be read.
type Snapshot struct {
	Artifact *model.Artifact
	Tables   []string
}

type Exporter struct {
	catalog *catalog.Catalog
	reader  TableReader
	logger  *slog.Logger
}

func NewExporter(cat *catalog.Catalog, reader TableReader, logger *slog.Logger) *Exporter {
	return &Exporter{
		catalog: cat,
		reader:  reader,
		logger:  logger.With("component", "exporter"),
	}
}

// Export reads the schedule's tables. Tables that fail to read are left out
// of the artifact; cancelling ctx aborts the export.
func (e *Exporter) Export(ctx context.Context, sched model.BackupSchedule, now time.Time) (*Snapshot, error) {
	tables := e.catalog.Tables(sched.BackupScope == model.BackupScopeFull)

	art := &model.Artifact{
		Version:        model.ArtifactVersion,
		CreatedAt:      now.UTC(),
		PracticeID:     sched.PracticeID,
		BackupScope:    sched.BackupScope,
		BackupType:     model.BackupTypeAutomatic,
		Tables:         make(map[string][]model.Row, len(tables)),
		TableRowCounts: make(map[string]int, len(tables)),
	}

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}

		var filter *string
		if sched.PracticeID != nil && !e.catalog.IsGlobal(table) {
			filter = sched.PracticeID
		}

		rows, err := e.reader.ReadTable(ctx, table, e.catalog.TenantColumn(), filter)
		if err != nil {
			e.logger.Debug("skip table", "table", table, "error", err)
			tablesSkipped.Inc()
			continue
		}
		art.Tables[table] = rows
		art.TableRowCounts[table] = len(rows)
		art.TotalRows += len(rows)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	exportedRows.Add(float64(art.TotalRows))
	return &Snapshot{Artifact: art, Tables: tables}, nil
}

// Encode serializes an artifact as indented JSON.
func Encode(art *model.Artifact) ([]byte, error) {
	b, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return b, nil
}
