// Package interfaces documents the core abstractions used throughout the application.
//
// Consumers declare the narrow interfaces they need next to their code; this
// package only holds compile-time checks that the concrete types wire up.
//
// # Interface Categories
//
// ## Data Access Interfaces
//
//   - http.BookStore, http.ChapterStore, http.ProgressStore: read access for
//     controllers (internal/http/stores.go)
//   - library.BookStore, library.ChapterStore: cache writes during a refresh
//     (internal/library/syncer.go)
//   - progress.Store, progress.ReadStateWriter: position persistence
//     (internal/progress/tracker.go)
//   - preferences.SettingsBackend: key/value preference storage
//     (internal/preferences/preferences.go)
//
// All of them are implemented by the repositories under internal/database.
//
// ## External Service Interfaces
//
//   - library.Fetcher: story API access, implemented by remote.Client
//   - library.ProgressReporter: bulk refresh progress, implemented by the
//     sync repository
//
// ## Reader Core Interfaces
//
//   - session.ChapterSource: chapters for a session
//   - session.Refresher: on-demand fetch of uncached chapters
//   - session.PositionTracker: position reporting and resume
//   - session.PreferenceSource: preferences and their change stream
//   - session.Narrator: paced playback over reader items
//   - http.SessionManager: the process-wide session owner
//
// ## Background Work Interfaces
//
//   - tasks.Enqueuer: queueing refresh tasks, implemented by tasks.Client
//   - http.TaskStatusSource: task status lookups, implemented by tasks.Client
//   - tasks.BookRefresher, tasks.ChapterRefresher: task processors' view of
//     library.Syncer
//   - scheduler.BookLister, scheduler.LibraryRefresher,
//     scheduler.StatusRecorder: the periodic library refresh
//
// # Adding a New Implementation
//
// Declare the interface in the consuming package, implement it, then add a
// check to checks.go:
//
//	var _ session.Narrator = (*MyNarrator)(nil)
package interfaces
