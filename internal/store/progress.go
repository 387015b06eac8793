package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ProgressRepository reads and writes per-course progress.
type ProgressRepository struct {
	db *sql.DB
}

// Progress returns the progress repository for this store.
func (s *Store) Progress() *ProgressRepository {
	return &ProgressRepository{db: s.db}
}

// Get returns the stored count for a course.
func (r *ProgressRepository) Get(ctx context.Context, courseID string) (int, error) {
	var correct int
	err := r.db.QueryRowContext(ctx,
		`SELECT correct FROM course_progress WHERE course_id = ?`,
		courseID,
	).Scan(&correct)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return correct, nil
}

// Put overwrites the stored count for a course.
func (r *ProgressRepository) Put(ctx context.Context, courseID string, correct int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_progress (course_id, correct, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(course_id) DO UPDATE SET correct = excluded.correct, updated_at = excluded.updated_at`,
		courseID, correct, time.Now(),
	)
	return err
}

// All returns every stored count keyed by course id.
func (r *ProgressRepository) All(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT course_id, correct FROM course_progress`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var correct int
		if err := rows.Scan(&id, &correct); err != nil {
			return nil, err
		}
		out[id] = correct
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadProgress implements progress.Backend.
func (r *ProgressRepository) LoadProgress(ctx context.Context) (map[string]int, error) {
	return r.All(ctx)
}

// SaveProgress implements progress.Backend.
func (r *ProgressRepository) SaveProgress(ctx context.Context, courseID string, correct int) error {
	return r.Put(ctx, courseID, correct)
}
