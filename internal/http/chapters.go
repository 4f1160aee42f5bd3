package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/reader"
	"github.com/mrlokans/storyreader/internal/remote"
	"github.com/mrlokans/storyreader/internal/tasks"
)

type ChaptersController struct {
	chapters  ChapterStore
	refresher Refresher
	queue     tasks.Enqueuer
}

func NewChaptersController(chapters ChapterStore, refresher Refresher) *ChaptersController {
	return &ChaptersController{chapters: chapters, refresher: refresher}
}

// SetQueue enables ?async=true reloads.
func (cc *ChaptersController) SetQueue(queue tasks.Enqueuer) {
	cc.queue = queue
}

type ItemsResponse struct {
	ChapterID string            `json:"chapter_id"`
	BookID    string            `json:"book_id"`
	Title     string            `json:"title"`
	Items     []reader.ItemView `json:"items"`
	Total     int               `json:"total"`
}

func itemsResponse(ch *entities.Chapter) ItemsResponse {
	views := reader.Views(reader.Segment(*ch))
	return ItemsResponse{
		ChapterID: ch.ID,
		BookID:    ch.BookID,
		Title:     ch.Title,
		Items:     views,
		Total:     len(views),
	}
}

// Items segments the cached chapter into reader items.
func (cc *ChaptersController) Items(c *gin.Context) {
	chapterID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	ch, err := cc.chapters.FindChapter(chapterID)
	if err != nil {
		respondInternalError(c, err, "find chapter")
		return
	}
	if ch == nil {
		respondNotFound(c, "chapter")
		return
	}
	c.JSON(http.StatusOK, itemsResponse(ch))
}

// Reload is the explicit reload action. Unlike background refreshes it
// surfaces fetch failures to the caller.
func (cc *ChaptersController) Reload(c *gin.Context) {
	chapterID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	if c.Query("async") == "true" && cc.queue != nil {
		ids, err := cc.queue.Enqueue(tasks.RefreshChapterTask{ChapterID: chapterID})
		if err != nil {
			respondInternalError(c, err, "enqueue chapter refresh")
			return
		}
		respondAccepted(c, "Chapter refresh queued", gin.H{"task_id": ids[0]})
		return
	}

	ch, err := cc.refresher.RefreshChapter(c.Request.Context(), chapterID)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		respondNotFound(c, "chapter")
	case errors.Is(err, library.ErrFetchFailed):
		respondError(c, http.StatusBadGateway, "fetch_failed", "could not reload chapter: "+err.Error())
	case err != nil:
		respondInternalError(c, err, "reload chapter")
	default:
		c.JSON(http.StatusOK, itemsResponse(ch))
	}
}
