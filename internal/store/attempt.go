package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ayusman/mudra/internal/session"
)

// Attempt represents a finished training attempt stored in the database.
type Attempt struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Outcome   string    `json:"outcome"`
	Correct   int       `json:"correct"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// AttemptRepository provides access to attempt history.
type AttemptRepository struct {
	db *sql.DB
}

// Attempts returns the attempt repository for this store.
func (s *Store) Attempts() *AttemptRepository {
	return &AttemptRepository{db: s.db}
}

// Create inserts a finished attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *Attempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attempts (id, course_id, outcome, correct, total, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CourseID, a.Outcome, a.Correct, a.Total, a.StartedAt, a.EndedAt,
	)
	return err
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*Attempt, error) {
	a := &Attempt{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, course_id, outcome, correct, total, started_at, ended_at
		 FROM attempts WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.CourseID, &a.Outcome, &a.Correct, &a.Total, &a.StartedAt, &a.EndedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

// List returns attempts newest first. An empty courseID lists every course.
// limit <= 0 means no limit.
func (r *AttemptRepository) List(ctx context.Context, courseID string, limit int) ([]Attempt, error) {
	query := `SELECT id, course_id, outcome, correct, total, started_at, ended_at FROM attempts`
	var args []any
	if courseID != "" {
		query += ` WHERE course_id = ?`
		args = append(args, courseID)
	}
	query += ` ORDER BY ended_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.CourseID, &a.Outcome, &a.Correct, &a.Total, &a.StartedAt, &a.EndedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

// RecordAttempt implements session.History.
func (r *AttemptRepository) RecordAttempt(ctx context.Context, a session.Attempt) error {
	return r.Create(ctx, &Attempt{
		ID:        a.ID,
		CourseID:  a.CourseID,
		Outcome:   a.Outcome.String(),
		Correct:   a.Correct,
		Total:     a.Total,
		StartedAt: a.StartedAt,
		EndedAt:   a.EndedAt,
	})
}
