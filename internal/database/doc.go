// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, library stats
//	├── books/           # Cached book rows
//	├── chapters/        # Chapter content and per-chapter read state
//	├── progress/        # Reading positions
//	├── sync/            # Library refresh progress
//	└── settings/        # Key/value settings backing reader preferences
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./storyreader.db")
//
//	chaptersRepo := chapters.NewRepository(db.DB)
//	chapter, err := chaptersRepo.FindChapter("c1")
//
// # Interface Implementations
//
//   - chapters.Repository: implements library.ChapterStore, session.ChapterSource
//     and progress.ReadStateWriter
//   - books.Repository: implements library.BookStore
//   - progress.Repository: implements progress.Store
//   - settings.Repository: implements preferences.SettingsBackend
//   - sync.Repository: implements library.ProgressReporter
//
// Compile-time checks live in internal/interfaces.
package database
