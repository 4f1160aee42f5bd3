package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/storyreader/internal/database"
	"github.com/mrlokans/storyreader/internal/database/books"
	"github.com/mrlokans/storyreader/internal/database/chapters"
	progressrepo "github.com/mrlokans/storyreader/internal/database/progress"
	"github.com/mrlokans/storyreader/internal/database/settings"
	"github.com/mrlokans/storyreader/internal/database/sync"
	"github.com/mrlokans/storyreader/internal/http"
	"github.com/mrlokans/storyreader/internal/images"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
	"github.com/mrlokans/storyreader/internal/remote"
	"github.com/mrlokans/storyreader/internal/scheduler"
	"github.com/mrlokans/storyreader/internal/session"
	"github.com/mrlokans/storyreader/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

var _ http.HealthChecker = (*database.Database)(nil)
var _ http.BookStore = (*books.Repository)(nil)
var _ http.ChapterStore = (*chapters.Repository)(nil)
var _ http.ProgressStore = (*progressrepo.Repository)(nil)

var _ library.BookStore = (*books.Repository)(nil)
var _ library.ChapterStore = (*chapters.Repository)(nil)
var _ scheduler.BookLister = (*books.Repository)(nil)

var _ progress.Store = (*progressrepo.Repository)(nil)
var _ progress.ReadStateWriter = (*chapters.Repository)(nil)

var _ preferences.SettingsBackend = (*settings.Repository)(nil)
var _ scheduler.StatusRecorder = (*settings.Repository)(nil)

// =============================================================================
// External Services
// =============================================================================

var _ library.Fetcher = (*remote.Client)(nil)
var _ http.ImageCache = (*images.Cache)(nil)
var _ library.ImageInvalidator = (*images.Cache)(nil)

// =============================================================================
// Library Sync
// =============================================================================

var _ http.Refresher = (*library.Syncer)(nil)
var _ session.Refresher = (*library.Syncer)(nil)
var _ tasks.BookRefresher = (*library.Syncer)(nil)
var _ tasks.ChapterRefresher = (*library.Syncer)(nil)
var _ scheduler.LibraryRefresher = (*library.Syncer)(nil)

// ProgressReporter implementations
var _ library.ProgressReporter = (*sync.Repository)(nil)

var _ tasks.Enqueuer = (*tasks.Client)(nil)
var _ http.TaskStatusSource = (*tasks.Client)(nil)

// =============================================================================
// Reader Core
// =============================================================================

var _ session.ChapterSource = (*chapters.Repository)(nil)
var _ session.PositionTracker = (*progress.Tracker)(nil)
var _ http.PositionReporter = (*progress.Tracker)(nil)
var _ session.PreferenceSource = (*preferences.Store)(nil)
var _ http.PreferenceStore = (*preferences.Store)(nil)
var _ session.Narrator = (*session.PacedNarrator)(nil)
var _ http.SessionManager = (*session.Manager)(nil)
