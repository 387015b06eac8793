package app

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/session"
)

// PushFeed is a session.Feed for clients that run hand detection themselves
// and push one presence value per frame.
type PushFeed struct {
	mu      sync.Mutex
	deliver func(bool)
}

// NewPushFeed creates an idle push feed.
func NewPushFeed() *PushFeed {
	return &PushFeed{}
}

func (f *PushFeed) Start(ctx context.Context, deliver func(handPresent bool)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deliver != nil {
		return ErrFeedBusy
	}
	f.deliver = deliver
	return nil
}

func (f *PushFeed) Stop() error {
	f.mu.Lock()
	f.deliver = nil
	f.mu.Unlock()
	return nil
}

// Push delivers one frame result. It reports false when no session holds the
// feed.
func (f *PushFeed) Push(handPresent bool) bool {
	f.mu.Lock()
	deliver := f.deliver
	f.mu.Unlock()
	if deliver == nil {
		return false
	}
	deliver(handPresent)
	return true
}

var (
	_ session.Feed = (*PushFeed)(nil)
	_ session.Feed = (*Pipeline)(nil)
)
