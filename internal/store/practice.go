package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/praxisbackup/internal/model"
	"github.com/google/uuid"
)

type PracticeStore struct {
	db *sql.DB
}

func NewPracticeStore(db *sql.DB) *PracticeStore {
	return &PracticeStore{db: db}
}

func (s *PracticeStore) Create(ctx context.Context, name string) (*model.Practice, error) {
	p := model.Practice{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO practices (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, formatTime(p.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert practice: %w", err)
	}
	return &p, nil
}

// List returns up to limit practices, oldest first.
func (s *PracticeStore) List(ctx context.Context, limit int) ([]model.Practice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM practices ORDER BY created_at ASC, id ASC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list practices: %w", err)
	}
	defer rows.Close()

	var practices []model.Practice
	for rows.Next() {
		var p model.Practice
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan practice: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		practices = append(practices, p)
	}
	return practices, rows.Err()
}
