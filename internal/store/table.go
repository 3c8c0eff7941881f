package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/praxisbackup/internal/model"
)

// TableReader reads whole business tables for export.
type TableReader struct {
	db *sql.DB
}

func NewTableReader(db *sql.DB) *TableReader {
	return &TableReader{db: db}
}

// ReadTable returns every row of table, restricted to column = *value when
// value is non-nil. Table and column names must already be validated
// identifiers; they are quoted but not escaped.
func (r *TableReader) ReadTable(ctx context.Context, table, column string, value *string) ([]model.Row, error) {
	q := fmt.Sprintf(`SELECT * FROM "%s"`, table)
	var args []any
	if value != nil {
		q += fmt.Sprintf(` WHERE "%s" = ?`, column)
		args = append(args, *value)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}

	out := []model.Row{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(model.Row, len(cols))
		for i, c := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[i] = model.Field{Name: c, Value: v}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}
	return out, nil
}
