// Package app assembles the training controller from its frame feed, the
// course catalog and persistent progress.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/ayusman/mudra/internal/course"
	"github.com/ayusman/mudra/internal/progress"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds configuration options for the application.
type Config struct {
	Store   *store.Store
	Catalog *course.Catalog
	Feed    session.Feed
	Timing  session.Timing
	Clock   session.Clock
}

// App owns the training controller and the collaborators it was built from.
type App struct {
	store      *store.Store
	catalog    *course.Catalog
	tracker    *progress.Tracker
	feed       session.Feed
	controller *session.Controller
}

// New creates an App. Progress is loaded from the store when one is set,
// otherwise it lives in memory only.
func New(ctx context.Context, config Config) (*App, error) {
	catalog := config.Catalog
	if catalog == nil {
		catalog = course.Builtin(course.DefaultGoal)
	}
	feed := config.Feed
	if feed == nil {
		feed = NewPushFeed()
	}

	timing := config.Timing
	if timing == (session.Timing{}) {
		timing = session.DefaultTiming()
	}

	opts := []session.Option{session.WithTiming(timing)}
	if config.Clock != nil {
		opts = append(opts, session.WithClock(config.Clock))
	}

	var tracker *progress.Tracker
	if config.Store != nil {
		var err error
		tracker, err = progress.NewWithBackend(ctx, catalog, config.Store.Progress())
		if err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
		opts = append(opts, session.WithHistory(config.Store.Attempts()))
	} else {
		tracker = progress.New(catalog)
	}

	a := &App{
		store:   config.Store,
		catalog: catalog,
		tracker: tracker,
		feed:    feed,
	}
	a.controller = session.New(catalog, tracker, feed, opts...)

	log.Printf("Loaded %d courses", len(catalog.List()))
	return a, nil
}

// Controller returns the training session controller.
func (a *App) Controller() *session.Controller {
	return a.controller
}

// Catalog returns the course catalog.
func (a *App) Catalog() *course.Catalog {
	return a.catalog
}

// Tracker returns the per-course progress tracker.
func (a *App) Tracker() *progress.Tracker {
	return a.tracker
}

// Store returns the backing store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// Feed returns the frame feed sessions acquire.
func (a *App) Feed() session.Feed {
	return a.feed
}

// Close ends any session and releases the feed. The store is owned by the
// caller.
func (a *App) Close() error {
	return a.controller.Close()
}
