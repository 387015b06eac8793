// Package detector provides hand detection for the training pipeline.
package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

var (
	// ErrScriptNotFound is returned when the MediaPipe service script cannot be located.
	ErrScriptNotFound = errors.New("mediapipe_service.py not found")

	// ErrClosed is returned by Detect after Close.
	ErrClosed = errors.New("detector closed")
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector. It is idempotent.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 1).
	MaxHands int

	// ModelComplexity selects the landmark model (0 = lite, 1 = full).
	ModelComplexity int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// ScriptPath overrides the mediapipe_service.py search.
	ScriptPath string

	// PythonPath overrides the interpreter search.
	PythonPath string
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        1,
		ModelComplexity: 1,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}

// Factory creates a detector for one session.
type Factory func(Config) (Detector, error)
