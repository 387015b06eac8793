package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/session"
)

var (
	// ErrUnknownCommand is returned for a command name with no handler.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrNoFeed is returned when a frame is pushed but no session holds the
	// push feed, or frames come from a local camera.
	ErrNoFeed = errors.New("no session is accepting pushed frames")
)

// Command names accepted over HTTP and the session socket.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandRetry  = "retry"
	CommandBack   = "back"
)

// Command is one user action on the training session.
type Command struct {
	Name     string `json:"command"`
	CourseID string `json:"course_id,omitempty"`
	Success  bool   `json:"success,omitempty"`
}

// FramePusher accepts hand-presence results from a client-side detector.
type FramePusher interface {
	Push(handPresent bool) bool
}

// Execute applies cmd to the controller.
func Execute(ctx context.Context, ctl *session.Controller, cmd Command) error {
	switch cmd.Name {
	case CommandStart:
		return ctl.Start(ctx, cmd.CourseID)
	case CommandPause:
		return ctl.Pause()
	case CommandResume:
		return ctl.Resume()
	case CommandStop:
		return ctl.Stop(cmd.Success)
	case CommandRetry:
		return ctl.Retry(ctx)
	case CommandBack:
		ctl.GoBack()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
}

// PushFrame hands one frame result to frames.
func PushFrame(frames FramePusher, handPresent bool) error {
	if frames == nil || !frames.Push(handPresent) {
		return ErrNoFeed
	}
	return nil
}
