package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Course progress - last committed correct count per course
		`CREATE TABLE IF NOT EXISTS course_progress (
			course_id TEXT PRIMARY KEY,
			correct INTEGER NOT NULL DEFAULT 0 CHECK(correct >= 0),
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Attempts - one row per finished training attempt
		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			course_id TEXT NOT NULL,
			outcome TEXT NOT NULL CHECK(outcome IN ('completed', 'failed')),
			correct INTEGER NOT NULL,
			total INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			ended_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_attempts_course_id ON attempts(course_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
