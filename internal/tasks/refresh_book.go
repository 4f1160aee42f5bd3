package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/remote"
)

// BookRefresher refreshes one book and its chapters from the story API.
type BookRefresher interface {
	RefreshBook(ctx context.Context, bookID string) (library.SyncResult, error)
}

// RefreshBookTask refreshes a book's metadata and chapter list.
type RefreshBookTask struct {
	BookID string `json:"book_id"`
}

func (t RefreshBookTask) refreshKey() string { return "book:" + t.BookID }

func (t RefreshBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_book",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func RefreshBookProcessor(refresher BookRefresher) backlite.QueueProcessor[RefreshBookTask] {
	return func(ctx context.Context, task RefreshBookTask) error {
		if refresher == nil {
			return fmt.Errorf("book refresher not configured")
		}

		result, err := refresher.RefreshBook(ctx, task.BookID)
		if errors.Is(err, remote.ErrNotFound) {
			// gone upstream; retrying will not bring it back
			log.Printf("[TASK] Book %s no longer exists upstream, keeping local copy", task.BookID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("refresh book %s: %w", task.BookID, err)
		}

		log.Printf("[TASK] Refreshed book %s: %d chapters merged, %d skipped, %d failed",
			task.BookID, result.Merged, result.Skipped, result.Failed)
		return nil
	}
}

func NewRefreshBookQueue(refresher BookRefresher) backlite.Queue {
	return backlite.NewQueue(RefreshBookProcessor(refresher))
}
