package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/remote"
)

// ChapterRefresher refreshes one chapter from the story API.
type ChapterRefresher interface {
	RefreshChapter(ctx context.Context, chapterID string) (*entities.Chapter, error)
}

// RefreshChapterTask re-fetches a single chapter's content.
type RefreshChapterTask struct {
	ChapterID string `json:"chapter_id"`
}

func (t RefreshChapterTask) refreshKey() string { return "chapter:" + t.ChapterID }

func (t RefreshChapterTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "refresh_chapter",
		MaxAttempts: 3,
		Backoff:     15 * time.Second,
		Timeout:     1 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func RefreshChapterProcessor(refresher ChapterRefresher) backlite.QueueProcessor[RefreshChapterTask] {
	return func(ctx context.Context, task RefreshChapterTask) error {
		if refresher == nil {
			return fmt.Errorf("chapter refresher not configured")
		}

		chapter, err := refresher.RefreshChapter(ctx, task.ChapterID)
		switch {
		case errors.Is(err, remote.ErrNotFound), errors.Is(err, library.ErrInvalidChapter):
			log.Printf("[TASK] Chapter %s cannot be refreshed: %v", task.ChapterID, err)
			return nil
		case err != nil:
			return fmt.Errorf("refresh chapter %s: %w", task.ChapterID, err)
		}

		log.Printf("[TASK] Refreshed chapter %s (%s): %d words", chapter.ID, chapter.Title, chapter.WordCount)
		return nil
	}
}

func NewRefreshChapterQueue(refresher ChapterRefresher) backlite.Queue {
	return backlite.NewQueue(RefreshChapterProcessor(refresher))
}
