// Package tray provides a system tray menu showing the training session and
// offering pause, resume and quit.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/session"
)

// Tray represents the system tray application.
type Tray struct {
	onPause  func()
	onResume func()
	onOpen   func()
	onQuit   func()
	last     session.Snapshot
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus   *systray.MenuItem
	menuProgress *systray.MenuItem
	menuToggle   *systray.MenuItem
}

// New creates a new Tray instance showing an idle session.
func New() *Tray {
	return &Tray{last: session.Snapshot{State: session.StateIdle}}
}

// OnPause sets the callback for the pause menu item.
func (t *Tray) OnPause(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnResume sets the callback for the resume menu item.
func (t *Tray) OnResume(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResume = fn
}

// OnOpen sets the callback for the open trainer menu item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand-sign trainer")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem("", "Session state")
	t.menuStatus.Disable()
	t.menuProgress = systray.AddMenuItem("", "Correct gestures toward the goal")
	t.menuProgress.Disable()
	systray.AddSeparator()
	t.menuToggle = systray.AddMenuItem("Pause", "Pause or resume detection")
	t.render()
	t.mu.Unlock()

	systray.AddSeparator()
	menuOpen := systray.AddMenuItem("Open Trainer...", "Open the trainer in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// Update shows snap in the menu. It is safe to call before Run.
func (t *Tray) Update(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = snap
	t.render()
}

// render is called with t.mu held.
func (t *Tray) render() {
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(statusTitle(t.last))
	t.menuProgress.SetTitle(progressTitle(t.last))

	title, enabled := toggleTitle(t.last.State)
	t.menuToggle.SetTitle(title)
	if enabled {
		t.menuToggle.Enable()
	} else {
		t.menuToggle.Disable()
	}
}

func (t *Tray) handleToggle() {
	t.mu.RLock()
	state := t.last.State
	pause, resume := t.onPause, t.onResume
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	switch state {
	case session.StateDetecting:
		if pause != nil {
			pause()
		}
	case session.StatePaused:
		if resume != nil {
			resume()
		}
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Last returns the most recent snapshot shown.
func (t *Tray) Last() session.Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func statusTitle(snap session.Snapshot) string {
	switch {
	case snap.CourseID == "":
		return "● " + snap.State.String()
	case snap.Error != "":
		return fmt.Sprintf("● %s: %s", snap.CourseID, snap.Error)
	case snap.Status != "" && snap.State == session.StateDetecting:
		return fmt.Sprintf("● %s: %s", snap.CourseID, snap.Status)
	default:
		return fmt.Sprintf("● %s: %s", snap.CourseID, snap.State)
	}
}

func progressTitle(snap session.Snapshot) string {
	if snap.Goal == 0 {
		return "No course selected"
	}
	s := fmt.Sprintf("%d/%d correct (%d%%)", snap.Correct, snap.Goal, snap.ProgressPercent)
	if snap.State.Terminal() && snap.Total > 0 {
		s += fmt.Sprintf(", accuracy %d%%", snap.Accuracy)
	}
	return s
}

func toggleTitle(state session.State) (string, bool) {
	switch state {
	case session.StateDetecting:
		return "Pause", true
	case session.StatePaused:
		return "Resume", true
	default:
		return "Pause", false
	}
}
