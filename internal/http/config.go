package http

import (
	"github.com/mrlokans/storyreader/internal/tasks"
)

// RouterConfig contains all dependencies needed to create the HTTP router.
type RouterConfig struct {
	// Storage
	Health   HealthChecker
	Books    BookStore
	Chapters ChapterStore
	Progress ProgressStore

	// Reader core
	Refresher   Refresher
	Positions   PositionReporter
	Preferences PreferenceStore
	Sessions    SessionManager

	// Image cache (optional); image routes are registered only with it
	Images ImageCache

	// Task queue (optional); refreshes run inline without it
	TaskQueue  tasks.Enqueuer
	TaskStatus TaskStatusSource

	// Application info
	Version string
}
