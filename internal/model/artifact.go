package model

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

const ArtifactVersion = "2.0"

// Artifact is the JSON document written to object storage for one backup.
type Artifact struct {
	Version        string           `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	PracticeID     *string          `json:"practice_id"`
	BackupScope    BackupScope      `json:"backup_scope"`
	BackupType     BackupType       `json:"backup_type"`
	Tables         map[string][]Row `json:"tables"`
	TableRowCounts map[string]int   `json:"table_row_counts"`
	TotalRows      int              `json:"total_rows"`
}

// Field is a single column value within a Row.
type Field struct {
	Name  string
	Value any
}

// Row is a table row whose JSON encoding keeps the column order of the query.
type Row []Field

// Get returns the value of the named column.
func (r Row) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
