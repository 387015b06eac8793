package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/course"
)

// Catalog resolves course ids.
type Catalog interface {
	Get(id string) (course.Course, error)
}

// Tracker stores the committed correct count per course.
type Tracker interface {
	Get(courseID string) int
	RecordSuccess(ctx context.Context, courseID string, correct int) error
}

// Feed is the camera and detector pair a session holds while detecting.
type Feed interface {
	// Start acquires the camera and detector and begins delivering one
	// hand-presence value per frame. Errors should wrap
	// ErrCameraAccessDenied or ErrDetectorInit.
	Start(ctx context.Context, deliver func(handPresent bool)) error

	// Stop releases the camera and detector. It must be idempotent, safe to
	// call after a failed Start, and must not wait for an in-flight delivery.
	Stop() error
}

// Attempt is the record of one finished attempt.
type Attempt struct {
	ID        string
	CourseID  string
	Outcome   State
	Correct   int
	Total     int
	StartedAt time.Time
	EndedAt   time.Time
}

// History receives finished attempts.
type History interface {
	RecordAttempt(ctx context.Context, a Attempt) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for timestamps and timers.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithTiming sets the detection timing rules.
func WithTiming(t Timing) Option {
	return func(c *Controller) { c.timing = t }
}

// WithHistory records every finished attempt to h.
func WithHistory(h History) Option {
	return func(c *Controller) { c.history = h }
}

// Controller owns the single training session and serializes every command,
// frame and timer callback that touches it.
type Controller struct {
	catalog Catalog
	tracker Tracker
	feed    Feed
	clock   Clock
	timing  Timing
	history History

	// startMu serializes feed acquisition so only one Feed.Start is in
	// flight. It is taken before mu.
	startMu sync.Mutex

	mu        sync.Mutex
	sess      TrainingSession
	proc      *Processor
	feedHeld  bool
	feedEpoch uint64
	seq       uint64
	subs      map[int]func(Snapshot)
	nextSub   int

	// notifyMu orders subscriber calls; delivered is the newest Seq handed
	// to subscribers.
	notifyMu  sync.Mutex
	delivered uint64
}

// New creates a controller in the idle state.
func New(catalog Catalog, tracker Tracker, feed Feed, opts ...Option) *Controller {
	c := &Controller{
		catalog: catalog,
		tracker: tracker,
		feed:    feed,
		clock:   RealClock(),
		timing:  DefaultTiming(),
		sess:    TrainingSession{State: StateIdle},
		subs:    make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current display snapshot.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.sess.snapshot()
	snap.Seq = c.seq
	return snap
}

// Subscribe registers fn to receive a snapshot after every change.
// Snapshots arrive in order; one overtaken by a newer change is skipped.
// fn is called without the controller lock held but must not call the
// controller's commands. The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Start begins a session for courseID. An empty courseID opens free-practice
// course browsing without starting detection. Any previous session is
// discarded. Start blocks while the feed initializes; Snapshot and GoBack
// stay available and observe StateInitializing meanwhile.
func (c *Controller) Start(ctx context.Context, courseID string) error {
	if courseID == "" {
		c.mu.Lock()
		c.releaseLocked()
		c.sess = TrainingSession{State: StateAwaitingCourseSelection}
		c.unlockAndNotify()
		return nil
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	crs, err := c.catalog.Get(courseID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.releaseLocked()
	c.sess = newTraining(crs, c.tracker.Get(crs.ID))
	err = c.beginLocked(ctx)
	c.unlockAndNotify()
	return err
}

// Pause suspends detection. Pending timers are cancelled.
func (c *Controller) Pause() error {
	c.mu.Lock()

	next, err := c.sess.to(StatePaused)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.proc != nil {
		c.proc.Cancel()
	}
	c.sess = next
	c.sess.HandDetected = false
	log.Printf("Session %s paused", c.sess.ID)

	c.unlockAndNotify()
	return nil
}

// Resume continues a paused session. No timer is rescheduled until a frame
// without a hand arrives.
func (c *Controller) Resume() error {
	c.mu.Lock()

	if c.sess.State != StatePaused {
		err := fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.sess.State)
		c.mu.Unlock()
		return err
	}
	next, err := c.sess.to(StateDetecting)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.sess = next
	log.Printf("Session %s resumed", c.sess.ID)

	c.unlockAndNotify()
	return nil
}

// Stop ends a detecting or paused session as completed or failed.
func (c *Controller) Stop(success bool) error {
	c.mu.Lock()

	if !c.sess.State.Active() {
		err := fmt.Errorf("%w: stop from %s", ErrInvalidTransition, c.sess.State)
		c.mu.Unlock()
		return err
	}
	c.finishLocked(success)

	c.unlockAndNotify()
	return nil
}

// Retry restarts a finished attempt on the same course with zeroed counters.
func (c *Controller) Retry(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()

	if !c.sess.State.Terminal() || c.sess.CourseID == "" {
		err := fmt.Errorf("%w: retry from %s", ErrInvalidTransition, c.sess.State)
		c.mu.Unlock()
		return err
	}

	c.releaseLocked()
	c.sess = c.sess.reset()
	err := c.beginLocked(ctx)

	c.unlockAndNotify()
	return err
}

// GoBack cancels any session and returns to idle. Progress is not touched.
func (c *Controller) GoBack() {
	c.mu.Lock()
	c.releaseLocked()
	c.sess = TrainingSession{State: StateIdle}
	c.unlockAndNotify()
}

// Close releases all resources, as when the host tears the UI down.
func (c *Controller) Close() error {
	c.GoBack()
	return nil
}

// deliver is handed to the feed; frames from a released feed are dropped.
func (c *Controller) deliver(epoch uint64, handPresent bool) {
	c.mu.Lock()
	c.frameLocked(epoch, handPresent)
}

// frameLocked is called with c.mu held and releases it.
func (c *Controller) frameLocked(epoch uint64, handPresent bool) {
	if epoch != c.feedEpoch || c.sess.State != StateDetecting || c.proc == nil {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	c.sess.HandDetected = handPresent

	switch c.proc.Process(now, handPresent) {
	case SignalSuppressed:
		if c.sess.Status == StatusAccepted && now.Sub(c.proc.LastAccepted()) > c.timing.RecognitionCooldown {
			c.sess.Status = ""
		}
	case SignalAccepted:
		next, reached := c.sess.accept()
		c.sess = next
		if reached {
			log.Printf("Session %s reached goal %d", c.sess.ID, c.sess.Goal)
			c.finishLocked(true)
		}
	case SignalInProgress:
		c.sess.Status = StatusInProgress
	case SignalHandMissing:
		c.sess.Status = StatusNoHand
	}

	c.unlockAndNotify()
}

// noHandExpired handles a fired no-hand timer from proc.
func (c *Controller) noHandExpired(proc *Processor, token uint64) {
	c.mu.Lock()

	if c.proc != proc || c.sess.State != StateDetecting || !proc.Expire(token) {
		c.mu.Unlock()
		return
	}

	log.Printf("Session %s: no hand detected for %s", c.sess.ID, c.timing.NoHandTimeout)
	c.finishLocked(false)
	c.unlockAndNotify()
}

// beginLocked moves the session through Initializing and acquires the feed.
// It is called with c.mu held and returns with it held, but publishes
// Initializing and drops the lock while the feed starts. If the session is
// replaced in the meantime the new feed is released and ErrSuperseded is
// returned. On acquisition failure the session ends in StateCameraError.
func (c *Controller) beginLocked(ctx context.Context) error {
	next, err := c.sess.to(StateInitializing)
	if err != nil {
		return err
	}
	c.sess = next
	c.sess.ID = uuid.NewString()
	c.sess.StartedAt = c.clock.Now()
	id := c.sess.ID

	c.feedEpoch++
	epoch := c.feedEpoch
	c.unlockAndNotify()

	err = c.feed.Start(ctx, func(present bool) { c.deliver(epoch, present) })

	c.mu.Lock()
	if epoch != c.feedEpoch {
		if err == nil {
			if serr := c.feed.Stop(); serr != nil {
				log.Printf("Error releasing camera feed: %v", serr)
			}
		}
		log.Printf("Session %s replaced while initializing", id)
		return ErrSuperseded
	}

	c.feedHeld = true
	if err != nil {
		c.releaseLocked()
		c.sess.State = StateCameraError
		c.sess.Err = acquireMessage(err)
		log.Printf("Session %s: failed to acquire camera feed: %v", c.sess.ID, err)
		return err
	}

	proc := NewProcessor(c.timing, c.clock, nil)
	proc.onTimeout = func(token uint64) { c.noHandExpired(proc, token) }
	c.proc = proc

	c.sess.State = StateDetecting
	log.Printf("Session %s started for course %s (correct=%d)", c.sess.ID, c.sess.CourseID, c.sess.Correct)
	return nil
}

// finishLocked releases resources first, then moves to the outcome state
// and commits progress on success.
func (c *Controller) finishLocked(success bool) {
	c.releaseLocked()

	outcome := StateFailed
	if success {
		outcome = StateCompleted
	}
	next, err := c.sess.to(outcome)
	if err != nil {
		log.Printf("Session %s: %v", c.sess.ID, err)
		return
	}
	c.sess = next
	c.sess.HandDetected = false
	c.sess.EndedAt = c.clock.Now()

	ctx := context.Background()
	if success && c.sess.CourseID != "" {
		if err := c.tracker.RecordSuccess(ctx, c.sess.CourseID, c.sess.Correct); err != nil {
			log.Printf("Failed to record progress for %s: %v", c.sess.CourseID, err)
		}
	}

	if c.history != nil {
		a := Attempt{
			ID:        c.sess.ID,
			CourseID:  c.sess.CourseID,
			Outcome:   c.sess.State,
			Correct:   c.sess.Correct,
			Total:     c.sess.Total,
			StartedAt: c.sess.StartedAt,
			EndedAt:   c.sess.EndedAt,
		}
		if err := c.history.RecordAttempt(ctx, a); err != nil {
			log.Printf("Failed to record attempt %s: %v", a.ID, err)
		}
	}

	log.Printf("Session %s %s: %d/%d correct, %d scored", c.sess.ID, c.sess.State, c.sess.Correct, c.sess.Goal, c.sess.Total)
}

// releaseLocked cancels timers and releases the feed. Safe to call in any
// state.
func (c *Controller) releaseLocked() {
	if c.proc != nil {
		c.proc.Cancel()
		c.proc = nil
	}

	// Invalidates deliveries from the previous feed.
	c.feedEpoch++

	if c.feedHeld {
		c.feedHeld = false
		if err := c.feed.Stop(); err != nil {
			log.Printf("Error releasing camera feed: %v", err)
		}
	}
}

// unlockAndNotify releases c.mu and pushes the new snapshot to subscribers.
// A snapshot older than one already delivered is dropped.
func (c *Controller) unlockAndNotify() {
	c.seq++
	snap := c.sess.snapshot()
	snap.Seq = c.seq

	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if snap.Seq <= c.delivered {
		return
	}
	c.delivered = snap.Seq
	for _, fn := range subs {
		fn(snap)
	}
}

func acquireMessage(err error) string {
	if errors.Is(err, ErrDetectorInit) {
		return msgDetectorInit
	}
	return msgCameraDenied
}
