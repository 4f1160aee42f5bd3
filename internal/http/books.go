package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	bookstore "github.com/mrlokans/storyreader/internal/database/books"
	"github.com/mrlokans/storyreader/internal/entities"
	"github.com/mrlokans/storyreader/internal/library"
	"github.com/mrlokans/storyreader/internal/remote"
	"github.com/mrlokans/storyreader/internal/tasks"
)

type BooksController struct {
	books     BookStore
	chapters  ChapterStore
	progress  ProgressStore
	refresher Refresher
	prefs     PreferenceStore
	queue     tasks.Enqueuer
}

func NewBooksController(books BookStore, chapters ChapterStore, progress ProgressStore, refresher Refresher, prefs PreferenceStore) *BooksController {
	return &BooksController{
		books:     books,
		chapters:  chapters,
		progress:  progress,
		refresher: refresher,
		prefs:     prefs,
	}
}

// SetQueue makes refreshes asynchronous.
func (bc *BooksController) SetQueue(queue tasks.Enqueuer) {
	bc.queue = queue
}

// ChapterSummary is a chapter without its text.
type ChapterSummary struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Order        int     `json:"order"`
	WordCount    int     `json:"word_count"`
	IsRead       bool    `json:"is_read"`
	ReadProgress float64 `json:"read_progress"`
}

type BookProgressResponse struct {
	BookID       string                     `json:"book_id"`
	BookProgress float64                    `json:"book_progress"`
	Last         *entities.ReadingProgress  `json:"last,omitempty"`
	Chapters     []entities.ReadingProgress `json:"chapters"`
}

func (bc *BooksController) ListBooks(c *gin.Context) {
	books, err := bc.books.ListBooks()
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books, "total": len(books)})
}

func (bc *BooksController) ListChapters(c *gin.Context) {
	bookID, ok := requireParam(c, "id")
	if !ok {
		return
	}
	ascending, ok := parseSortOrder(c, bc.prefs.Get().ChapterSortAscending)
	if !ok {
		return
	}

	book, err := bc.books.GetBook(bookID)
	if errors.Is(err, bookstore.ErrNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}

	chapters, err := bc.chapters.ListChapters(bookID)
	if err != nil {
		respondInternalError(c, err, "list chapters")
		return
	}

	summaries := make([]ChapterSummary, 0, len(chapters))
	for _, ch := range chapters {
		summaries = append(summaries, ChapterSummary{
			ID:           ch.ID,
			Title:        ch.Title,
			Order:        ch.Order,
			WordCount:    ch.WordCount,
			IsRead:       ch.IsRead,
			ReadProgress: ch.ReadProgress,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if ascending {
			return summaries[i].Order < summaries[j].Order
		}
		return summaries[i].Order > summaries[j].Order
	})

	c.JSON(http.StatusOK, gin.H{"book": book, "chapters": summaries})
}

// RefreshBook re-fetches a book from the story API. With a task queue the
// refresh is queued and 202 is returned.
func (bc *BooksController) RefreshBook(c *gin.Context) {
	bookID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	if bc.queue != nil {
		ids, err := bc.queue.Enqueue(tasks.RefreshBookTask{BookID: bookID})
		if err != nil {
			respondInternalError(c, err, "enqueue book refresh")
			return
		}
		respondAccepted(c, "Book refresh queued", gin.H{"task_id": ids[0]})
		return
	}

	result, err := bc.refresher.RefreshBook(c.Request.Context(), bookID)
	switch {
	case errors.Is(err, remote.ErrNotFound):
		respondNotFound(c, "book")
	case errors.Is(err, library.ErrFetchFailed):
		respondError(c, http.StatusBadGateway, "fetch_failed", "story API unavailable, local copy kept")
	case err != nil:
		respondInternalError(c, err, "refresh book")
	default:
		c.JSON(http.StatusOK, result)
	}
}

func (bc *BooksController) GetProgress(c *gin.Context) {
	bookID, ok := requireParam(c, "id")
	if !ok {
		return
	}

	list, err := bc.progress.ListForBook(bookID)
	if err != nil {
		respondInternalError(c, err, "list progress")
		return
	}

	resp := BookProgressResponse{BookID: bookID, Chapters: list}
	if len(list) > 0 {
		// newest first
		resp.Last = &list[0]
		resp.BookProgress = list[0].BookProgress
	}
	c.JSON(http.StatusOK, resp)
}
