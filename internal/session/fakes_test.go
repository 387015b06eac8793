package session

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/progress"
)

// fakeClock is a manually advanced clock. Due timers fire on Advance, outside
// the clock's lock.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

// fireAll runs every callback ever scheduled, including stopped ones. It
// simulates a timer that fired concurrently with its cancellation.
func (c *fakeClock) fireAll() {
	c.mu.Lock()
	all := append([]*fakeTimer(nil), c.timers...)
	c.mu.Unlock()

	for _, t := range all {
		t.f()
	}
}

// active returns the number of armed timers.
func (c *fakeClock) active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeFeed records acquisitions and lets tests push frames.
type fakeFeed struct {
	mu       sync.Mutex
	startErr error
	starts   int
	stops    int
	active   bool
	deliver  func(bool)
	entered  chan struct{}
	gate     chan struct{}
}

// hold makes Start block until release is closed. entered receives once
// Start is waiting.
func (f *fakeFeed) hold() (entered <-chan struct{}, release chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entered = make(chan struct{}, 1)
	f.gate = make(chan struct{})
	return f.entered, f.gate
}

func (f *fakeFeed) Start(ctx context.Context, deliver func(bool)) error {
	f.mu.Lock()
	entered, gate := f.entered, f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	f.deliver = deliver
	return nil
}

func (f *fakeFeed) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.active = false
	return nil
}

func (f *fakeFeed) push(present bool) {
	f.mu.Lock()
	deliver := f.deliver
	f.mu.Unlock()
	if deliver != nil {
		deliver(present)
	}
}

func (f *fakeFeed) isActive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeFeed) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

// fakeHistory collects finished attempts.
type fakeHistory struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (h *fakeHistory) RecordAttempt(ctx context.Context, a Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, a)
	return nil
}

type harness struct {
	ctl     *Controller
	clock   *fakeClock
	feed    *fakeFeed
	tracker *progress.Tracker
	history *fakeHistory
	mu      sync.Mutex
	seen    []Snapshot
}

func newHarness() *harness {
	catalog := course.Builtin(course.DefaultGoal)
	h := &harness{
		clock:   newFakeClock(),
		feed:    &fakeFeed{},
		tracker: progress.New(catalog),
		history: &fakeHistory{},
	}
	h.ctl = New(catalog, h.tracker, h.feed,
		WithClock(h.clock),
		WithTiming(DefaultTiming()),
		WithHistory(h.history),
	)
	h.ctl.Subscribe(func(s Snapshot) {
		h.mu.Lock()
		h.seen = append(h.seen, s)
		h.mu.Unlock()
	})
	return h
}

// countState returns how many published snapshots were in state s.
func (h *harness) countState(s State) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, snap := range h.seen {
		if snap.State == s {
			n++
		}
	}
	return n
}
