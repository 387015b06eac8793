package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/course"
)

// scoringGap spaces accepted gestures past both the cooldown and the
// suppression window.
const scoringGap = DefaultRecognitionCooldown + DefaultSuppressionWindow

func TestController_StartSeedsFromProgress(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tracker.RecordSuccess(ctx, "A", 5))

	require.NoError(t, h.ctl.Start(ctx, "A"))

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateDetecting, snap.State)
	assert.Equal(t, "A", snap.CourseID)
	assert.Equal(t, 5, snap.Correct)
	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, course.DefaultGoal, snap.Goal)
	assert.NotEmpty(t, snap.SessionID)
	assert.NotEmpty(t, snap.Instruction)
	assert.True(t, h.feed.isActive())
}

func TestController_ReachesGoal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "A"))

	for i := 0; i < course.DefaultGoal; i++ {
		h.feed.push(true)
		h.clock.Advance(scoringGap)
	}

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Equal(t, 20, snap.Correct)
	assert.Equal(t, 20, snap.Total)
	assert.True(t, snap.GoalReached)
	assert.Equal(t, 100, snap.Accuracy)
	assert.Equal(t, 20, h.tracker.Get("A"))
	assert.False(t, h.feed.isActive())

	// Late frames do nothing.
	h.feed.push(true)
	assert.Equal(t, 20, h.ctl.Snapshot().Total)
	assert.Equal(t, 1, h.countState(StateCompleted))

	require.Len(t, h.history.attempts, 1)
	assert.Equal(t, StateCompleted, h.history.attempts[0].Outcome)
	assert.Equal(t, snap.SessionID, h.history.attempts[0].ID)
}

func TestController_GoalIsCapped(t *testing.T) {
	ctx := context.Background()

	for _, prior := range []int{19, 20} {
		t.Run(fmt.Sprintf("prior %d", prior), func(t *testing.T) {
			h := newHarness()
			require.NoError(t, h.tracker.RecordSuccess(ctx, "E", prior))
			require.NoError(t, h.ctl.Start(ctx, "E"))

			h.feed.push(true)

			snap := h.ctl.Snapshot()
			assert.Equal(t, StateCompleted, snap.State)
			assert.Equal(t, 20, snap.Correct)
			assert.Equal(t, 1, snap.Total)
			assert.Equal(t, 1, h.countState(StateCompleted))
		})
	}
}

func TestController_NoHandTimeout(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "I"))

	for elapsed := time.Duration(0); elapsed < DefaultNoHandTimeout; elapsed += 500 * time.Millisecond {
		h.feed.push(false)
		assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
		h.clock.Advance(500 * time.Millisecond)
	}

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, 0, h.tracker.Get("I"))
	assert.False(t, h.feed.isActive())
	assert.Equal(t, 0, h.clock.active())

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.countState(StateFailed))
}

func TestController_HandCancelsTimeout(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctl.Start(context.Background(), "O"))

	h.feed.push(false)
	assert.Equal(t, StatusNoHand, h.ctl.Snapshot().Status)
	h.clock.Advance(2 * time.Second)
	h.feed.push(true)
	h.clock.Advance(5 * time.Second)

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateDetecting, snap.State)
	assert.Equal(t, 1, snap.Correct)
	assert.True(t, snap.HandDetected)
}

func TestController_Retry(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "U"))
	h.feed.push(true)
	h.clock.Advance(scoringGap)
	h.feed.push(false)
	h.clock.Advance(DefaultNoHandTimeout)
	require.Equal(t, StateFailed, h.ctl.Snapshot().State)
	first := h.ctl.Snapshot().SessionID

	require.NoError(t, h.ctl.Retry(ctx))

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateDetecting, snap.State)
	assert.Equal(t, "U", snap.CourseID)
	assert.Equal(t, 0, snap.Correct)
	assert.Equal(t, 0, snap.Total)
	assert.NotEqual(t, first, snap.SessionID)

	starts, stops := h.feed.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
}

func TestController_StopFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.tracker.RecordSuccess(ctx, "A", 4))
	require.NoError(t, h.ctl.Start(ctx, "A"))
	h.feed.push(true)

	require.NoError(t, h.ctl.Stop(false))

	assert.Equal(t, StateFailed, h.ctl.Snapshot().State)
	assert.Equal(t, 4, h.tracker.Get("A"))
	assert.False(t, h.feed.isActive())
}

func TestController_StopSuccessCommitsProgress(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "O"))
	h.feed.push(true)
	h.clock.Advance(scoringGap)
	h.feed.push(true)

	require.NoError(t, h.ctl.Stop(true))

	assert.Equal(t, StateCompleted, h.ctl.Snapshot().State)
	assert.Equal(t, 2, h.tracker.Get("O"))
}

func TestController_PauseResume(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctl.Start(context.Background(), "A"))

	h.feed.push(false)
	require.Equal(t, 1, h.clock.active())

	require.NoError(t, h.ctl.Pause())
	assert.Equal(t, StatePaused, h.ctl.Snapshot().State)
	assert.Equal(t, 0, h.clock.active())
	assert.True(t, h.feed.isActive(), "paused sessions keep the feed")

	t.Run("frames are ignored while paused", func(t *testing.T) {
		h.feed.push(true)
		assert.Equal(t, 0, h.ctl.Snapshot().Total)
	})

	h.clock.Advance(10 * time.Second)
	assert.Equal(t, StatePaused, h.ctl.Snapshot().State)

	require.NoError(t, h.ctl.Resume())
	assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)

	// Paused time is not credited toward the timeout.
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)

	h.feed.push(false)
	h.clock.Advance(DefaultNoHandTimeout)
	assert.Equal(t, StateFailed, h.ctl.Snapshot().State)
}

func TestController_StaleTimerIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "E"))
	h.feed.push(false)

	t.Run("after go back", func(t *testing.T) {
		h.ctl.GoBack()
		require.NoError(t, h.ctl.Start(ctx, "E"))
		h.clock.fireAll()
		assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
	})

	t.Run("after pause", func(t *testing.T) {
		h.feed.push(false)
		require.NoError(t, h.ctl.Pause())
		require.NoError(t, h.ctl.Resume())
		h.clock.fireAll()
		assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
	})

	t.Run("after retry", func(t *testing.T) {
		h.feed.push(false)
		require.NoError(t, h.ctl.Stop(false))
		require.NoError(t, h.ctl.Retry(ctx))
		h.clock.fireAll()
		assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
	})
}

func TestController_StaleFeedDeliveryIgnored(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "A"))

	h.feed.mu.Lock()
	old := h.feed.deliver
	h.feed.mu.Unlock()

	h.ctl.GoBack()
	require.NoError(t, h.ctl.Start(ctx, "A"))

	old(true)
	assert.Equal(t, 0, h.ctl.Snapshot().Total)

	h.feed.push(true)
	assert.Equal(t, 1, h.ctl.Snapshot().Total)
}

func TestController_AcquisitionFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"camera denied", fmt.Errorf("%w: device busy", ErrCameraAccessDenied), msgCameraDenied},
		{"detector init", fmt.Errorf("%w: no script", ErrDetectorInit), msgDetectorInit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			ctx := context.Background()
			h.feed.startErr = tt.err

			err := h.ctl.Start(ctx, "A")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err))

			snap := h.ctl.Snapshot()
			assert.Equal(t, StateCameraError, snap.State)
			assert.Equal(t, tt.message, snap.Error)
			_, stops := h.feed.counts()
			assert.Equal(t, 1, stops, "feed must be released after a failed start")
			assert.Empty(t, h.history.attempts)

			h.feed.startErr = nil
			require.NoError(t, h.ctl.Retry(ctx))
			assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
			assert.Empty(t, h.ctl.Snapshot().Error)
		})
	}
}

func TestController_UnknownCourse(t *testing.T) {
	h := newHarness()

	err := h.ctl.Start(context.Background(), "Z")

	assert.True(t, errors.Is(err, course.ErrCourseNotFound))
	assert.Equal(t, StateIdle, h.ctl.Snapshot().State)
	starts, _ := h.feed.counts()
	assert.Equal(t, 0, starts)
}

func TestController_FreePractice(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.ctl.Start(ctx, ""))
	assert.Equal(t, StateAwaitingCourseSelection, h.ctl.Snapshot().State)
	starts, _ := h.feed.counts()
	assert.Equal(t, 0, starts)

	require.NoError(t, h.ctl.Start(ctx, "I"))
	assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
}

func TestController_GoBack(t *testing.T) {
	ctx := context.Background()

	t.Run("from detecting", func(t *testing.T) {
		h := newHarness()
		require.NoError(t, h.ctl.Start(ctx, "A"))
		h.feed.push(true)

		h.ctl.GoBack()

		snap := h.ctl.Snapshot()
		assert.Equal(t, StateIdle, snap.State)
		assert.Empty(t, snap.CourseID)
		assert.Equal(t, 0, h.tracker.Get("A"))
		assert.False(t, h.feed.isActive())
	})

	t.Run("after completion keeps committed progress", func(t *testing.T) {
		h := newHarness()
		require.NoError(t, h.ctl.Start(ctx, "A"))
		h.feed.push(true)
		require.NoError(t, h.ctl.Stop(true))

		h.ctl.GoBack()

		assert.Equal(t, StateIdle, h.ctl.Snapshot().State)
		assert.Equal(t, 1, h.tracker.Get("A"))
	})
}

func TestController_InvalidTransitions(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	assert.ErrorIs(t, h.ctl.Pause(), ErrInvalidTransition)
	assert.ErrorIs(t, h.ctl.Resume(), ErrInvalidTransition)
	assert.ErrorIs(t, h.ctl.Stop(true), ErrInvalidTransition)
	assert.ErrorIs(t, h.ctl.Retry(ctx), ErrInvalidTransition)

	require.NoError(t, h.ctl.Start(ctx, "A"))
	assert.ErrorIs(t, h.ctl.Resume(), ErrInvalidTransition)
	assert.ErrorIs(t, h.ctl.Retry(ctx), ErrInvalidTransition)
	assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)
}

func TestController_RestartDiscardsSession(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.ctl.Start(ctx, "A"))
	h.feed.push(true)

	require.NoError(t, h.ctl.Start(ctx, "E"))

	snap := h.ctl.Snapshot()
	assert.Equal(t, "E", snap.CourseID)
	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, 0, h.tracker.Get("A"))
	starts, stops := h.feed.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 1, stops)
}

func TestController_CountInvariants(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	require.NoError(t, h.ctl.Start(ctx, "A"))

	for i := 0; i < 2000; i++ {
		switch rng.Intn(6) {
		case 0:
			_ = h.ctl.Pause()
		case 1:
			_ = h.ctl.Resume()
		case 2:
			if h.ctl.Snapshot().State.Terminal() {
				require.NoError(t, h.ctl.Retry(ctx))
			}
		default:
			h.feed.push(rng.Intn(3) > 0)
		}
		h.clock.Advance(time.Duration(rng.Intn(4000)) * time.Millisecond)

		snap := h.ctl.Snapshot()
		require.GreaterOrEqual(t, snap.Correct, 0)
		require.LessOrEqual(t, snap.Correct, snap.Goal)
		require.LessOrEqual(t, snap.Correct, snap.Total)
	}
}

func TestController_StartPublishesInitializing(t *testing.T) {
	h := newHarness()
	entered, release := h.feed.hold()

	done := make(chan error, 1)
	go func() { done <- h.ctl.Start(context.Background(), "A") }()
	waitFor(t, entered, "feed start")

	snapped := make(chan Snapshot, 1)
	go func() { snapped <- h.ctl.Snapshot() }()
	select {
	case snap := <-snapped:
		assert.Equal(t, StateInitializing, snap.State)
		assert.Equal(t, "A", snap.CourseID)
	case <-time.After(time.Second):
		t.Fatal("Snapshot() blocked while the feed was starting")
	}
	assert.Equal(t, 1, h.countState(StateInitializing))

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateDetecting, h.ctl.Snapshot().State)

	h.feed.push(true)
	assert.Equal(t, 1, h.ctl.Snapshot().Total)
}

func TestController_GoBackWhileInitializing(t *testing.T) {
	h := newHarness()
	entered, release := h.feed.hold()

	done := make(chan error, 1)
	go func() { done <- h.ctl.Start(context.Background(), "E") }()
	waitFor(t, entered, "feed start")

	h.ctl.GoBack()
	assert.Equal(t, StateIdle, h.ctl.Snapshot().State)

	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	snap := h.ctl.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.CourseID)
	assert.False(t, h.feed.isActive(), "feed acquired for a replaced session must be released")
	starts, stops := h.feed.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
	assert.Empty(t, h.history.attempts)

	h.feed.push(true)
	assert.Equal(t, StateIdle, h.ctl.Snapshot().State)
	assert.Equal(t, 0, h.ctl.Snapshot().Total)
}

func TestController_SubscribersSeeChangesInOrder(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctl.Start(context.Background(), "A"))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var got []Snapshot
	h.ctl.Subscribe(func(s Snapshot) {
		if s.State == StateDetecting && s.Status == StatusNoHand {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	// The frame's snapshot is still being delivered when Stop runs.
	pushed := make(chan struct{})
	go func() {
		h.feed.push(false)
		close(pushed)
	}()
	waitFor(t, entered, "frame snapshot")

	stopped := make(chan error, 1)
	go func() { stopped <- h.ctl.Stop(false) }()
	require.Eventually(t, func() bool {
		return h.ctl.Snapshot().State == StateFailed
	}, time.Second, time.Millisecond)

	close(release)
	waitFor(t, pushed, "frame delivery")
	require.NoError(t, <-stopped)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, StateFailed, last.State, "the last snapshot delivered must match the controller")
	assert.Equal(t, h.ctl.Snapshot().Seq, last.Seq)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Seq, got[i-1].Seq)
	}
}

func TestController_AcceptedStatusClears(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.ctl.Start(context.Background(), "A"))

	h.feed.push(true)
	assert.Equal(t, StatusAccepted, h.ctl.Snapshot().Status)

	h.clock.Advance(time.Second)
	h.feed.push(true)
	assert.Equal(t, StatusAccepted, h.ctl.Snapshot().Status)

	h.clock.Advance(1500 * time.Millisecond)
	h.feed.push(true)
	snap := h.ctl.Snapshot()
	assert.Empty(t, snap.Status)
	assert.Equal(t, 1, snap.Correct)
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
