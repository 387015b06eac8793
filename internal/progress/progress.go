// Package progress tracks the cumulative correct-gesture count per course.
package progress

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ayusman/mudra/internal/course"
)

// Backend loads and saves progress records outside the tracker.
type Backend interface {
	LoadProgress(ctx context.Context) (map[string]int, error)
	SaveProgress(ctx context.Context, courseID string, correct int) error
}

// Tracker maps course ids to their last committed correct count.
// It is safe for concurrent use.
type Tracker struct {
	catalog *course.Catalog
	backend Backend
	counts  map[string]int
	mu      sync.RWMutex
}

// New creates a tracker with every catalog course at zero.
func New(catalog *course.Catalog) *Tracker {
	t := &Tracker{
		catalog: catalog,
		counts:  make(map[string]int),
	}
	for _, c := range catalog.List() {
		t.counts[c.ID] = 0
	}
	return t
}

// NewWithBackend creates a tracker seeded from backend. Successful records
// are written through to it.
func NewWithBackend(ctx context.Context, catalog *course.Catalog, backend Backend) (*Tracker, error) {
	t := New(catalog)
	t.backend = backend

	stored, err := backend.LoadProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	for id, n := range stored {
		c, err := catalog.Get(id)
		if err != nil {
			log.Printf("Ignoring stored progress for unknown course %q", id)
			continue
		}
		t.counts[id] = clamp(n, c.Goal)
	}

	return t, nil
}

// Get returns the stored count for courseID, or 0 if unknown.
func (t *Tracker) Get(courseID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[courseID]
}

// All returns a copy of every course's count.
func (t *Tracker) All() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out
}

// RecordSuccess overwrites the stored count for courseID with correct,
// clamped to the course goal.
func (t *Tracker) RecordSuccess(ctx context.Context, courseID string, correct int) error {
	c, err := t.catalog.Get(courseID)
	if err != nil {
		return err
	}
	correct = clamp(correct, c.Goal)

	t.mu.Lock()
	t.counts[courseID] = correct
	t.mu.Unlock()

	if t.backend != nil {
		if err := t.backend.SaveProgress(ctx, courseID, correct); err != nil {
			return fmt.Errorf("save progress for %s: %w", courseID, err)
		}
	}
	return nil
}

func clamp(n, goal int) int {
	if n < 0 {
		return 0
	}
	if n > goal {
		return goal
	}
	return n
}
