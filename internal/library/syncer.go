package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/remote"
)

var (
	// ErrFetchFailed wraps any transport or decoding failure from the story
	// API. Local state is untouched when it is returned.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidChapter is returned when the API answers with a chapter that
	// has no ID.
	ErrInvalidChapter = errors.New("server chapter has no id")

	// ErrSyncRunning is returned when a library refresh is already running.
	ErrSyncRunning = errors.New("library refresh already running")
)

// Fetcher is the part of the story API the syncer needs.
type Fetcher interface {
	FetchChapterDetail(ctx context.Context, chapterID string) (*remote.Chapter, error)
	FetchBookDetail(ctx context.Context, bookID string) (*remote.Book, error)
}

// ChapterStore is the local chapter cache.
type ChapterStore interface {
	FindChapter(id string) (*entities.Chapter, error)
	UpsertChapter(chapter *entities.Chapter) error
}

// BookStore is the local book cache.
type BookStore interface {
	UpsertBook(book *entities.Book) error
	ListBookIDs() ([]string, error)
}

// ProgressReporter receives progress of a full library refresh.
type ProgressReporter interface {
	StartSync(totalItems int) error
	UpdateProgress(processed, succeeded, failed, skipped int, currentItem string) error
	CompleteSync(succeeded bool, errorMsg string) error
	IsSyncRunning() (bool, error)
}

// ImageInvalidator drops cached images that a refresh made stale.
type ImageInvalidator interface {
	InvalidateBook(bookID string) error
	InvalidateChapter(chapterID string) error
}

// SyncResult describes one book refresh.
type SyncResult struct {
	BookID  string `json:"book_id"`
	Merged  int    `json:"merged"`
	Skipped int    `json:"skipped"` // server chapters without an id
	Failed  int    `json:"failed"`
}

// LibraryResult aggregates a refresh of every cached book.
type LibraryResult struct {
	Books       int `json:"books"`
	BooksFailed int `json:"books_failed"`
	Merged      int `json:"merged"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Syncer fetches books and chapters and merges them into the local cache.
type Syncer struct {
	fetcher  Fetcher
	chapters ChapterStore
	books    BookStore
	reporter ProgressReporter
	images   ImageInvalidator
}

func NewSyncer(fetcher Fetcher, chapters ChapterStore, books BookStore) *Syncer {
	return &Syncer{
		fetcher:  fetcher,
		chapters: chapters,
		books:    books,
	}
}

// SetProgressReporter enables progress tracking for RefreshAll.
func (s *Syncer) SetProgressReporter(reporter ProgressReporter) {
	s.reporter = reporter
}

// SetImageInvalidator clears cached covers and illustrations on refresh.
func (s *Syncer) SetImageInvalidator(images ImageInvalidator) {
	s.images = images
}

// MergeChapter merges a server chapter with the stored one and persists the
// result.
func (s *Syncer) MergeChapter(server remote.Chapter, bookID string) (*entities.Chapter, error) {
	if strings.TrimSpace(server.ID) == "" {
		return nil, ErrInvalidChapter
	}

	local, err := s.chapters.FindChapter(server.ID)
	if err != nil {
		return nil, fmt.Errorf("load chapter %s: %w", server.ID, err)
	}

	merged := Merge(server, bookID, local)
	if err := s.chapters.UpsertChapter(&merged); err != nil {
		return nil, fmt.Errorf("save chapter %s: %w", server.ID, err)
	}
	if s.images != nil && local != nil && !sameImages(local.Images, merged.Images) {
		if err := s.images.InvalidateChapter(merged.ID); err != nil {
			log.Printf("[SYNC] Failed to invalidate images of chapter %s: %v", merged.ID, err)
		}
	}
	return &merged, nil
}

// RefreshChapter fetches one chapter and merges it into the cache.
func (s *Syncer) RefreshChapter(ctx context.Context, chapterID string) (*entities.Chapter, error) {
	server, err := s.fetcher.FetchChapterDetail(ctx, chapterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if server.ID == "" {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ErrInvalidChapter)
	}
	return s.MergeChapter(*server, "")
}

// RefreshBook fetches a book with its chapter list, stores the book and
// merges every chapter independently. Chapters without an id are skipped and
// counted; a chapter that fails to save does not stop the others.
func (s *Syncer) RefreshBook(ctx context.Context, bookID string) (SyncResult, error) {
	result := SyncResult{BookID: bookID}

	server, err := s.fetcher.FetchBookDetail(ctx, bookID)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	id := server.ID
	if id == "" {
		id = bookID
	}

	valid := 0
	for _, ch := range server.Chapters {
		if strings.TrimSpace(ch.ID) != "" {
			valid++
		}
	}

	book := &entities.Book{
		ID:           id,
		Title:        server.Title,
		Author:       server.Author,
		Description:  server.Description,
		CoverURL:     server.CoverURL,
		Narrator:     server.Narrator,
		ChapterCount: valid,
	}
	if err := s.books.UpsertBook(book); err != nil {
		return result, fmt.Errorf("save book %s: %w", id, err)
	}
	if s.images != nil {
		if err := s.images.InvalidateBook(id); err != nil {
			log.Printf("[SYNC] Failed to invalidate cover of book %s: %v", id, err)
		}
	}

	for _, ch := range server.Chapters {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if strings.TrimSpace(ch.ID) == "" {
			result.Skipped++
			continue
		}
		if _, err := s.MergeChapter(ch, id); err != nil {
			log.Printf("[SYNC] Book %s: failed to merge chapter %s: %v", id, ch.ID, err)
			result.Failed++
			continue
		}
		result.Merged++
	}

	if result.Skipped > 0 {
		log.Printf("[SYNC] Book %s: skipped %d chapters without id", id, result.Skipped)
	}
	return result, nil
}

// RefreshAll refreshes every cached book. A book that fails to refresh is
// logged and counted; its local state stays as it was.
func (s *Syncer) RefreshAll(ctx context.Context) (LibraryResult, error) {
	var result LibraryResult

	if s.reporter != nil {
		running, err := s.reporter.IsSyncRunning()
		if err != nil {
			return result, fmt.Errorf("check sync status: %w", err)
		}
		if running {
			return result, ErrSyncRunning
		}
	}

	ids, err := s.books.ListBookIDs()
	if err != nil {
		return result, fmt.Errorf("list books: %w", err)
	}

	s.report(func(r ProgressReporter) error { return r.StartSync(len(ids)) })

	for i, id := range ids {
		if ctx.Err() != nil {
			s.report(func(r ProgressReporter) error { return r.CompleteSync(false, ctx.Err().Error()) })
			return result, ctx.Err()
		}

		bookResult, err := s.RefreshBook(ctx, id)
		result.Books++
		result.Merged += bookResult.Merged
		result.Skipped += bookResult.Skipped
		result.Failed += bookResult.Failed
		if err != nil {
			log.Printf("[SYNC] Book %s: refresh failed, keeping local copy: %v", id, err)
			result.BooksFailed++
		}

		processed := i + 1
		s.report(func(r ProgressReporter) error {
			return r.UpdateProgress(processed, processed-result.BooksFailed, result.BooksFailed, result.Skipped, id)
		})
	}

	s.report(func(r ProgressReporter) error { return r.CompleteSync(true, "") })
	log.Printf("[SYNC] Library refresh finished: %d books (%d failed), %d chapters merged, %d skipped",
		result.Books, result.BooksFailed, result.Merged, result.Skipped)
	return result, nil
}

func (s *Syncer) report(fn func(ProgressReporter) error) {
	if s.reporter == nil {
		return
	}
	if err := fn(s.reporter); err != nil {
		log.Printf("[SYNC] Failed to record progress: %v", err)
	}
}

func sameImages(a, b []entities.ChapterImage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].URL != b[i].URL {
			return false
		}
	}
	return true
}
