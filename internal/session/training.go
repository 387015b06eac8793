package session

import (
	"fmt"
	"math"
	"time"

	"github.com/ayusman/mudra/internal/course"
)

// TrainingSession is the state of one active or just-finished attempt.
// It is a plain value; the functions below return modified copies.
type TrainingSession struct {
	ID           string
	CourseID     string
	Instruction  string
	Goal         int
	State        State
	Correct      int
	Total        int
	HandDetected bool
	Status       string
	Err          string
	StartedAt    time.Time
	EndedAt      time.Time
}

// newTraining creates an idle session for crs seeded with prior progress.
func newTraining(crs course.Course, prior int) TrainingSession {
	if prior < 0 {
		prior = 0
	}
	if prior > crs.Goal {
		prior = crs.Goal
	}
	return TrainingSession{
		CourseID:    crs.ID,
		Instruction: crs.Instruction,
		Goal:        crs.Goal,
		State:       StateIdle,
		Correct:     prior,
	}
}

// to moves the session to state next if the transition is allowed.
func (t TrainingSession) to(next State) (TrainingSession, error) {
	if !canTransition(t.State, next) {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.State, next)
	}
	t.State = next
	return t, nil
}

// accept scores one gesture. It reports whether the goal is now reached.
func (t TrainingSession) accept() (TrainingSession, bool) {
	t.Total++
	if t.Correct < t.Goal {
		t.Correct++
	}
	t.Status = StatusAccepted
	return t, t.Correct >= t.Goal
}

// reset clears the counters for a retry.
func (t TrainingSession) reset() TrainingSession {
	t.Correct = 0
	t.Total = 0
	t.HandDetected = false
	t.Status = ""
	t.Err = ""
	t.EndedAt = time.Time{}
	return t
}

// Snapshot is the read-only view handed to the display layer.
type Snapshot struct {
	SessionID       string `json:"session_id,omitempty"`
	State           State  `json:"state"`
	CourseID        string `json:"course_id,omitempty"`
	Instruction     string `json:"instruction,omitempty"`
	Correct         int    `json:"correct_count"`
	Total           int    `json:"total_count"`
	Goal            int    `json:"goal"`
	GoalReached     bool   `json:"goal_reached"`
	HandDetected    bool   `json:"hand_detected"`
	Status          string `json:"status,omitempty"`
	Error           string `json:"error,omitempty"`
	Accuracy        int    `json:"accuracy"`
	ProgressPercent int    `json:"progress_percent"`

	// Seq increases with every published change. Consumers that receive
	// snapshots from several sources keep the highest.
	Seq uint64 `json:"seq"`
}

func (t TrainingSession) snapshot() Snapshot {
	return Snapshot{
		SessionID:       t.ID,
		State:           t.State,
		CourseID:        t.CourseID,
		Instruction:     t.Instruction,
		Correct:         t.Correct,
		Total:           t.Total,
		Goal:            t.Goal,
		GoalReached:     t.Goal > 0 && t.Correct >= t.Goal,
		HandDetected:    t.HandDetected,
		Status:          t.Status,
		Error:           t.Err,
		Accuracy:        Accuracy(t.Correct, t.Total),
		ProgressPercent: Percent(t.Correct, t.Goal),
	}
}

// Accuracy returns correct/total as a rounded percentage capped at 100.
// It is 0 when nothing was scored.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return Percent(correct, total)
}

// Percent returns n/of as a rounded percentage capped at 100, or 0 when of
// is not positive.
func Percent(n, of int) int {
	if of <= 0 {
		return 0
	}
	p := int(math.Round(float64(n) / float64(of) * 100))
	if p > 100 {
		return 100
	}
	return p
}
