package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/preferences"
	"github.com/mrlokans/storyreader/internal/progress"
)

// Each controller depends on the narrow interfaces below; the database
// repositories, the library syncer and the preferences store satisfy them.

// BookStore provides read access to cached books.
type BookStore interface {
	ListBooks() ([]entities.Book, error)
	GetBook(id string) (*entities.Book, error)
}

// ChapterStore provides read access to cached chapters.
type ChapterStore interface {
	FindChapter(id string) (*entities.Chapter, error)
	ListChapters(bookID string) ([]entities.Chapter, error)
}

// ProgressStore lists stored reading positions.
type ProgressStore interface {
	ListForBook(bookID string) ([]entities.ReadingProgress, error)
}

// Refresher pulls books and chapters from the story API into the cache.
type Refresher interface {
	RefreshBook(ctx context.Context, bookID string) (library.SyncResult, error)
	RefreshChapter(ctx context.Context, chapterID string) (*entities.Chapter, error)
}

// PositionReporter accepts fire-and-forget scroll positions.
type PositionReporter interface {
	Report(pos progress.Position)
}

// PreferenceStore reads and writes reader preferences.
type PreferenceStore interface {
	Get() preferences.Preferences
	Update(p preferences.Preferences) (preferences.Preferences, error)
}

// TaskStatusSource reports the state of queued refreshes.
type TaskStatusSource interface {
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// ImageCache serves local copies of covers and chapter illustrations.
type ImageCache interface {
	Cover(ctx context.Context, bookID, coverURL string) (string, error)
	ChapterImage(ctx context.Context, chapterID string, index int, imageURL string) (string, error)
}
