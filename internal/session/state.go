// Package session implements the training-session state machine that turns
// per-frame hand detections into scored gestures and session outcomes.
package session

import (
	"errors"
	"fmt"
)

// State is a training-session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAwaitingCourseSelection
	StateInitializing
	StateDetecting
	StatePaused
	StateCompleted
	StateFailed
	// StateCameraError is entered when the camera or detector cannot be
	// acquired. It is distinct from StateFailed and permits Retry.
	StateCameraError
)

var stateNames = map[State]string{
	StateIdle:                    "idle",
	StateAwaitingCourseSelection: "awaiting_course_selection",
	StateInitializing:            "initializing",
	StateDetecting:               "detecting",
	StatePaused:                  "paused",
	StateCompleted:               "completed",
	StateFailed:                  "failed",
	StateCameraError:             "camera_error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state as its name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Terminal reports whether s ends an attempt.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCameraError
}

// Active reports whether s holds the camera feed.
func (s State) Active() bool {
	return s == StateDetecting || s == StatePaused
}

// transitions lists the allowed target states for each state.
var transitions = map[State][]State{
	StateIdle:                    {StateAwaitingCourseSelection, StateInitializing},
	StateAwaitingCourseSelection: {StateInitializing, StateIdle},
	StateInitializing:            {StateDetecting, StateCameraError, StateIdle},
	StateDetecting:               {StatePaused, StateCompleted, StateFailed, StateIdle},
	StatePaused:                  {StateDetecting, StateCompleted, StateFailed, StateIdle},
	StateCompleted:               {StateInitializing, StateIdle},
	StateFailed:                  {StateInitializing, StateIdle},
	StateCameraError:             {StateInitializing, StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition is returned when a command is not valid in the
	// current state.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrCameraAccessDenied is returned when the camera cannot be acquired.
	ErrCameraAccessDenied = errors.New("camera access denied")

	// ErrDetectorInit is returned when the hand detector fails to initialize.
	ErrDetectorInit = errors.New("detector initialization failed")

	// ErrSuperseded is returned by Start and Retry when the session was
	// replaced or cancelled while the feed was starting.
	ErrSuperseded = errors.New("session superseded during initialization")
)

// Display status messages.
const (
	StatusAccepted   = "gesture accepted"
	StatusInProgress = "gesture in progress"
	StatusNoHand     = "hand not detected"
)

// Messages shown for acquisition failures.
const (
	msgCameraDenied = "Could not access the camera. Make sure permission has been granted."
	msgDetectorInit = "Could not start hand detection."
)
